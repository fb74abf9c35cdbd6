package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func abortPath(dir, schedule string) string {
	return filepath.Join(dir, schedule+".abort")
}

// AbortSignal implements ports.AbortSignal with a marker file next to the
// schedule document, so `sluice abort` in another shell stops a running
// traversal.
type AbortSignal struct {
	BasePath string
}

// NewAbortSignal creates a signal rooted at the schedule directory.
func NewAbortSignal(basePath string) *AbortSignal {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &AbortSignal{BasePath: basePath}
}

func (a *AbortSignal) Request(ctx context.Context, schedule string) error {
	if err := checkName(schedule); err != nil {
		return err
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339) + "\n")
	return writeAtomic(a.BasePath, abortPath(a.BasePath, schedule), stamp)
}

func (a *AbortSignal) Requested(ctx context.Context, schedule string) (bool, error) {
	_, err := os.Stat(abortPath(a.BasePath, schedule))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check abort marker: %w", err)
	}
}

func (a *AbortSignal) Acknowledge(ctx context.Context, schedule string) error {
	err := os.Remove(abortPath(a.BasePath, schedule))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove abort marker: %w", err)
	}
	return nil
}
