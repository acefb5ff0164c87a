package pipeline

import (
	"context"

	"prodshot/internal/pkg/errors"
)

// topFrameCount is how many representative frames feed the later stages.
const topFrameCount = 3

// selectTopFrames narrows the sampled frames down to at most topFrameCount.
// With topFrameCount or fewer frames there is nothing to choose, so the model
// is not consulted. A provider failure here is fatal: the call happens before
// any expensive work has accumulated, so aborting is cheap.
func (p *Pipeline) selectTopFrames(ctx context.Context, st *WorkflowState, _ JobPaths) error {
	const op = "pipeline.select_top_frames"

	if err := st.requireFrames(op); err != nil {
		return err
	}

	if len(st.SampledFrames) <= topFrameCount {
		st.TopFrames = append([]string(nil), st.SampledFrames...)
		return nil
	}

	raw, err := p.vision.SelectTopFrames(ctx, st.SampledFrames, topFrameCount)
	if err != nil {
		return errors.Wrap(err, op, "top frame selection failed")
	}

	indices := normalizeTopIndices(raw, len(st.SampledFrames), topFrameCount)
	top := make([]string, 0, len(indices))
	for _, i := range indices {
		top = append(top, st.SampledFrames[i])
	}

	st.TopFrames = top
	return nil
}

// normalizeTopIndices turns a model response into exactly want valid, unique
// indices into a sequence of length total:
//
//   - out-of-range values are discarded before anything else
//   - duplicates keep their first occurrence
//   - more than want valid indices are truncated to the first want
//   - fewer than want are padded with the smallest unused indices, ascending
//   - zero valid indices fall back to the first want positions
func normalizeTopIndices(raw []int, total, want int) []int {
	if want > total {
		want = total
	}

	used := make(map[int]bool, want)
	out := make([]int, 0, want)
	for _, i := range raw {
		if i < 0 || i >= total || used[i] {
			continue
		}
		used[i] = true
		out = append(out, i)
		if len(out) == want {
			break
		}
	}

	for i := 0; len(out) < want && i < total; i++ {
		if used[i] {
			continue
		}
		used[i] = true
		out = append(out, i)
	}

	return out
}
