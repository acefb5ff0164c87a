// Package segment provides local background removal via the rembg command
// line tool. It is the always-available fallback when model segmentation
// fails; it has no quota semantics.
package segment

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Remover implements pipeline.BackgroundRemover over the rembg CLI, feeding
// the image through stdin/stdout.
type Remover struct {
	bin string
}

// NewRemover builds a remover using rembg from PATH.
func NewRemover() *Remover {
	return &Remover{bin: "rembg"}
}

func (r *Remover) Remove(ctx context.Context, image []byte) ([]byte, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image for background removal")
	}

	cmd := exec.CommandContext(ctx, r.bin, "i", "-", "-")
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rembg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("rembg produced no output")
	}

	return stdout.Bytes(), nil
}
