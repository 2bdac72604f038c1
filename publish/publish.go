// Package publish moves finished videos out of their working area and hands
// back a locator a caller can share: a signed expiring download URL when the
// server fronts the output directory, or a plain filesystem path otherwise.
package publish

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// UploadError reports a finished video that could not be published.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("publishing %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Destination names where a published video should live. Both fields are
// optional: an empty Folder publishes at the output root and an empty Name
// gets a timestamped default.
type Destination struct {
	Folder string
	Name   string
}

// Locator points at a published video. Expires is zero when the URL is a
// plain filesystem path that never expires.
type Locator struct {
	URL     string
	Expires int64
}

// Publisher takes a finished video file and makes it reachable for the
// caller. Implementations own the file once Publish returns nil.
type Publisher interface {
	Publish(ctx context.Context, file string, dest Destination) (Locator, error)
}

// Store publishes into a local output directory. With a BaseURL it hands
// out signed expiring /download links; without one (the one-shot command
// line mode) it returns the destination path itself.
type Store struct {
	OutputDir string
	BaseURL   string
	Key       string
	TTL       time.Duration
}

// NewStore builds a Store. baseURL may be empty for path-only locators.
func NewStore(outputDir, baseURL, key string, ttl time.Duration) *Store {
	return &Store{OutputDir: outputDir, BaseURL: strings.TrimRight(baseURL, "/"), Key: key, TTL: ttl}
}

// Publish moves file into the output directory under dest and returns its
// locator. The move must happen before the caller tears down the working
// area holding file.
func (s *Store) Publish(ctx context.Context, file string, dest Destination) (Locator, error) {
	if err := ctx.Err(); err != nil {
		return Locator{}, &UploadError{Path: file, Err: err}
	}

	name := sanitizeName(dest.Name)
	if name == "" {
		name = fmt.Sprintf("slideshow_%d", time.Now().Unix())
	}
	if !strings.HasSuffix(name, ".mp4") {
		name += ".mp4"
	}

	rel := name
	if folder := sanitizeName(dest.Folder); folder != "" {
		rel = filepath.Join(folder, name)
	}
	target := filepath.Join(s.OutputDir, rel)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Locator{}, &UploadError{Path: file, Err: err}
	}
	if err := moveFile(file, target); err != nil {
		return Locator{}, &UploadError{Path: file, Err: err}
	}

	if s.BaseURL == "" {
		return Locator{URL: target}, nil
	}
	token, expires := SignToken(rel, s.Key, s.TTL)
	return Locator{
		URL:     fmt.Sprintf("%s/download?token=%s", s.BaseURL, token),
		Expires: expires,
	}, nil
}

// Resolve maps a download token back to the published file's path. The
// embedded path must stay inside the output directory.
func (s *Store) Resolve(token string) (string, error) {
	rel, err := VerifyToken(token, s.Key)
	if err != nil {
		return "", err
	}
	if rel == "" || !filepath.IsLocal(rel) {
		return "", ErrInvalidToken
	}
	return filepath.Join(s.OutputDir, rel), nil
}

// CleanExpired removes published videos older than maxAge, returning how
// many were removed. Links to them have long expired; this reclaims the
// disk behind them.
func (s *Store) CleanExpired(maxAge time.Duration) (int, error) {
	removed := 0
	err := filepath.WalkDir(s.OutputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if time.Since(info.ModTime()) <= maxAge {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Printf("Error removing expired output %s: %v", path, err)
			return nil
		}
		removed++
		return nil
	})
	if os.IsNotExist(err) {
		return removed, nil
	}
	return removed, err
}

// sanitizeName keeps letters and digits and turns everything else into
// underscores, so caller-supplied names cannot escape the output directory
// or confuse shells.
func sanitizeName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.TrimSuffix(name, ".mp4"))
	if strings.Trim(mapped, "_") == "" {
		return ""
	}
	return mapped
}

// moveFile renames src to dst, falling back to a copy when the two sit on
// different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
