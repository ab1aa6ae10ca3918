package scan

import (
	"context"
	"fmt"
	"os"

	git "github.com/go-git/go-git/v5"
)

// IsRemote reports whether the project argument is a git URL rather than a
// local directory.
func IsRemote(pathOrURL string) bool {
	switch {
	case len(pathOrURL) >= 4 && pathOrURL[:4] == "http":
		return true
	case len(pathOrURL) >= 4 && pathOrURL[:4] == "git@":
		return true
	}
	return false
}

// ProjectPath resolves the project argument: a git URL is shallow-cloned
// into a temporary directory, a local path is validated as a directory.
// The returned cleanup removes the temporary checkout (no-op for local
// paths) and is always non-nil.
func ProjectPath(ctx context.Context, pathOrURL string) (string, func(), error) {
	noop := func() {}

	if !IsRemote(pathOrURL) {
		info, err := os.Stat(pathOrURL)
		if err != nil {
			return "", noop, fmt.Errorf("project path: %w", err)
		}
		if !info.IsDir() {
			return "", noop, fmt.Errorf("%s: not a directory", pathOrURL)
		}
		return pathOrURL, noop, nil
	}

	dir, err := os.MkdirTemp("", "codescribe-*")
	if err != nil {
		return "", noop, fmt.Errorf("temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   pathOrURL,
		Depth: 1,
	})
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("cloning repository: %w", err)
	}

	return dir, cleanup, nil
}
