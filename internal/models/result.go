package models

import (
	"prodshot/internal/artifacts"
	"prodshot/internal/pipeline"
)

// ResultFromState maps a completed workflow state to a JobResult, converting
// every output path to its servable static URL.
func ResultFromState(st *pipeline.WorkflowState, staticRoot string) (*JobResult, error) {
	keyFrame, err := artifacts.StaticURL(staticRoot, st.BestFramePath)
	if err != nil {
		return nil, err
	}
	segmented, err := artifacts.StaticURL(staticRoot, st.SegmentedImagePath)
	if err != nil {
		return nil, err
	}

	shots := make([]string, 0, len(st.EnhancedShots))
	for _, p := range st.EnhancedShots {
		u, err := artifacts.StaticURL(staticRoot, p)
		if err != nil {
			return nil, err
		}
		shots = append(shots, u)
	}

	return &JobResult{
		ProductName:       st.ProductName,
		KeyFrameURL:       keyFrame,
		SegmentedImageURL: segmented,
		EnhancedShots:     shots,
	}, nil
}
