// Package artifacts persists and serves job output files under the static
// root. Keys are slash-separated paths relative to the root, e.g.
// "job-id/segmented.png".
package artifacts

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Store is the artifact persistence contract consumed by the pipeline, the
// API handlers and the worker's janitor.
type Store interface {
	// Put writes an object, creating parent directories as needed.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open returns the object contents, its content type and size.
	Open(ctx context.Context, key string) (rc io.ReadCloser, contentType string, size int64, err error)
	// RemoveTree deletes everything under a key prefix (a job directory).
	RemoveTree(ctx context.Context, prefix string) error
	// URL maps a key to its externally servable path.
	URL(key string) string
	// Root is the absolute directory objects live under.
	Root() string
}

// Dir implements Store on the local filesystem.
type Dir struct {
	root string
}

// NewDir creates a filesystem store rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Root() string { return d.root }

func (d *Dir) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	abs, err := d.abs(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return 0, err
	}

	f, err := os.Create(abs)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(f, r)
}

func (d *Dir) Open(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	abs, err := d.abs(key)
	if err != nil {
		return nil, "", 0, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, "", 0, err
	}

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	// Prefer extension-based type. If empty, sniff first bytes.
	contentType := mime.TypeByExtension(filepath.Ext(abs))
	if contentType == "" {
		buf := make([]byte, 512)
		n, _ := f.Read(buf)
		_, _ = f.Seek(0, 0)
		contentType = http.DetectContentType(buf[:n])
	}

	return f, contentType, size, nil
}

func (d *Dir) RemoveTree(ctx context.Context, prefix string) error {
	abs, err := d.abs(prefix)
	if err != nil {
		return err
	}
	if abs == d.root {
		return fmt.Errorf("refusing to remove store root")
	}
	return os.RemoveAll(abs)
}

// URL returns the static path for a key, matching the API's /static mount.
func (d *Dir) URL(key string) string {
	return "/static/" + path.Clean(strings.TrimPrefix(key, "/"))
}

// abs resolves a key, rejecting traversal outside the root.
func (d *Dir) abs(key string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(key, "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// StaticURL maps an absolute path under root to its servable URL.
func StaticURL(root, absPath string) (string, error) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside static root", absPath)
	}
	return "/static/" + filepath.ToSlash(rel), nil
}

// JobTree describes one job directory under the root.
type JobTree struct {
	JobID    string
	Modified time.Time
}

// ListJobTrees enumerates the per-job directories directly under root.
func ListJobTrees(root string) ([]JobTree, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	trees := make([]JobTree, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		trees = append(trees, JobTree{JobID: e.Name(), Modified: info.ModTime()})
	}
	return trees, nil
}
