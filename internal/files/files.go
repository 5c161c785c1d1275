// Package files implements the filesystem steps of a build: clearing the
// output directory and copying static assets into it.
package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const copyMaxTries = 5

// Clean removes dir, which must be strictly inside root.
func Clean(root, dir string) error {
	target, err := safePath(root, dir)
	if err != nil {
		return err
	}

	log.Debug().Str("dir", target).Msg("Cleaning output directory")

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to clean %s: %w", target, err)
	}
	return nil
}

// Copy recursively copies from into to, preserving relative paths, and returns
// the destination paths written. A missing source directory copies nothing.
func Copy(ctx context.Context, from, to string) ([]string, error) {
	info, err := os.Stat(from)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("from", from).Msg("Copy source does not exist, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", from, err)
	}

	if !info.IsDir() {
		dst := to
		if strings.HasSuffix(to, string(filepath.Separator)) {
			dst = filepath.Join(to, filepath.Base(from))
		}
		if err := copyFile(ctx, from, dst); err != nil {
			return nil, err
		}
		return []string{dst}, nil
	}

	var written []string
	err = filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(to, rel)
		if err := copyFile(ctx, path, dst); err != nil {
			return err
		}
		written = append(written, dst)
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("failed to copy %s to %s: %w", from, to, err)
	}

	log.Debug().Str("from", from).Str("to", to).Int("files", len(written)).Msg("Copied files")
	return written, nil
}

// copyFile retries the read since editors often replace files non-atomically
// while the watcher is rebuilding.
func copyFile(ctx context.Context, src, dst string) error {
	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		data, err := os.ReadFile(src)
		if errors.Is(err, fs.ErrPermission) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	},
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     20 * time.Millisecond,
			RandomizationFactor: backoff.DefaultRandomizationFactor,
			Multiplier:          backoff.DefaultMultiplier,
			MaxInterval:         500 * time.Millisecond,
		}),
		backoff.WithMaxTries(copyMaxTries),
	)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}

	if err := WriteFile(dst, data); err != nil {
		return err
	}
	return nil
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	// #nosec G306 - build output is served publicly
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func safePath(root, dir string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}

	target := dir
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(absRoot, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is not inside %s", ErrUnsafePath, target, absRoot)
	}
	return target, nil
}
