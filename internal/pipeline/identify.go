package pipeline

import (
	"context"
	"strings"

	"prodshot/internal/pkg/errors"
)

// identifyProduct asks the model to name the product shown in the top
// frames. An empty name leaves the rest of the pipeline without a subject,
// so it aborts the job. Not retried.
func (p *Pipeline) identifyProduct(ctx context.Context, st *WorkflowState, _ JobPaths) error {
	const op = "pipeline.identify_product"

	if err := st.requireTopFrames(op); err != nil {
		return err
	}

	name, err := p.vision.IdentifyProduct(ctx, st.TopFrames)
	if err != nil {
		return errors.Wrap(err, op, "product identification failed")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New(errors.CodeFailedPrecond, "model returned an empty product name")
	}

	st.ProductName = name
	return nil
}
