package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/persistence"
)

const ext = ".yaml"

// DefaultDir is where schedules live when no directory is configured.
var DefaultDir = filepath.Join(".sluice", "schedules")

// Store implements ports.ScheduleStore using the local filesystem.
// Each schedule is one YAML document named after the schedule.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to DefaultDir.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.BasePath, name+ext)
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("schedule name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid schedule name %q", name)
	}
	return nil
}

// Save persists the schedule atomically: it writes a temporary file in the
// same directory, fsyncs it and renames it over the destination.
func (s *Store) Save(ctx context.Context, schedule *domain.Schedule) error {
	if err := checkName(schedule.Name); err != nil {
		return err
	}
	data, err := persistence.Marshal(schedule, persistence.FormatYAML)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	return writeAtomic(s.BasePath, s.path(schedule.Name), data)
}

func writeAtomic(dir, dest string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure schedule directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file. The delete+rename
	// window is accepted there; elsewhere rename replaces atomically.
	if _, err := os.Stat(dest); err == nil && os.PathSeparator == '\\' {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing schedule file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads a schedule. A malformed document is an error, never a default.
func (s *Store) Load(ctx context.Context, name string) (*domain.Schedule, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	schedule, err := persistence.Unmarshal(data, persistence.FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(name), err)
	}
	return schedule, nil
}

// Delete removes the schedule file and any pending abort marker.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	for _, p := range []string{s.path(name), abortPath(s.BasePath, name)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	return nil
}

// List returns the names of all stored schedules.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ext))
	}
	sort.Strings(names)
	return names, nil
}
