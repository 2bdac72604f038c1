// Package staging manages a per-request working directory: remote inputs
// are fetched into it, intermediates are written into it, and the whole
// directory goes away in one sweep when the request finishes.
package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ResourceError reports an input locator that could not be made available
// to the encoder.
type ResourceError struct {
	Locator string
	Err     error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("staging %s: %v", e.Locator, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Fetcher retrieves the contents of a remote locator.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (io.ReadCloser, error)
}

// IsRemote reports whether a locator needs fetching rather than a stat.
func IsRemote(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

// LocalPath resolves a local locator to an absolute path, confirming the
// file exists first.
func LocalPath(locator string) (string, error) {
	info, err := os.Stat(locator)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", locator)
	}
	return filepath.Abs(locator)
}

// Area is the working directory of a single request. All paths it hands
// out are absolute, so encoder invocations are independent of the process
// working directory.
type Area struct {
	dir     string
	fetcher Fetcher

	mu     sync.Mutex
	staged map[string]string
}

// NewArea creates a fresh working directory under root.
func NewArea(root string, fetcher Fetcher) (*Area, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(absRoot, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating working area: %w", err)
	}
	return &Area{dir: dir, fetcher: fetcher, staged: make(map[string]string)}, nil
}

// Dir returns the area's directory.
func (a *Area) Dir() string { return a.dir }

// ID returns the unique portion of the area's path, useful as a request tag
// in log lines.
func (a *Area) ID() string { return filepath.Base(a.dir) }

// Path returns the location inside the area for a named file. It does not
// create the file.
func (a *Area) Path(name string) string { return filepath.Join(a.dir, name) }

// Stage makes a locator readable by local tooling and returns its path.
// Remote locators are downloaded into the area under the given name; a
// repeated locator reuses the first download. Local locators pass through
// untouched after an existence check: they stay where they are and are
// not removed by Cleanup.
func (a *Area) Stage(ctx context.Context, locator, name string) (string, error) {
	if !IsRemote(locator) {
		path, err := LocalPath(locator)
		if err != nil {
			return "", &ResourceError{Locator: locator, Err: err}
		}
		return path, nil
	}

	a.mu.Lock()
	if path, ok := a.staged[locator]; ok {
		a.mu.Unlock()
		return path, nil
	}
	a.mu.Unlock()

	path, err := a.fetch(ctx, locator, name)
	if err != nil {
		return "", &ResourceError{Locator: locator, Err: err}
	}

	a.mu.Lock()
	a.staged[locator] = path
	a.mu.Unlock()
	return path, nil
}

func (a *Area) fetch(ctx context.Context, locator, name string) (string, error) {
	if a.fetcher == nil {
		return "", fmt.Errorf("no fetcher configured for remote locator")
	}
	body, err := a.fetcher.Fetch(ctx, locator)
	if err != nil {
		return "", err
	}
	defer body.Close()

	path := a.Path(name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}

// StageAll stages locators concurrently, at most limit at a time, and
// returns their paths in input order. nameFor picks the in-area filename
// for each index. The first failure cancels the rest.
func (a *Area) StageAll(ctx context.Context, locators []string, nameFor func(i int, locator string) string, limit int) ([]string, error) {
	paths := make([]string, len(locators))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, locator := range locators {
		i, locator := i, locator
		g.Go(func() error {
			path, err := a.Stage(gctx, locator, nameFor(i, locator))
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// WriteFile stores data as a named file inside the area and returns its
// path.
func (a *Area) WriteFile(name string, data []byte) (string, error) {
	path := a.Path(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

// Cleanup deletes the area and everything staged into it. Safe to call
// more than once.
func (a *Area) Cleanup() error {
	return os.RemoveAll(a.dir)
}
