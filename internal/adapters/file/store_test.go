package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/sluice/internal/adapters/file"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/persistence"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/aretw0/sluice/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.ScheduleStore = (*file.Store)(nil)
	_ ports.AbortSignal   = (*file.AbortSignal)(nil)
)

func TestFileStore_Contract(t *testing.T) {
	tests.RunScheduleStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, tests.SampleSchedule(t, "nightly")))

	data, err := os.ReadFile(filepath.Join(dir, "nightly.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "current_node:")
	assert.Contains(t, string(data), "has_started: true")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileStore_FailsClosed(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	_, err := store.Load(context.Background(), "broken")
	var decodeErr *persistence.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "current_node", decodeErr.Field)
}

func TestFileStore_RejectsPathNames(t *testing.T) {
	store := file.New(t.TempDir())
	s := domain.NewSchedule("../escape")

	assert.Error(t, store.Save(context.Background(), s))
	_, err := store.Load(context.Background(), "")
	assert.Error(t, err)
}

func TestFileAbortSignal(t *testing.T) {
	dir := t.TempDir()
	signal := file.NewAbortSignal(dir)
	store := file.New(dir)
	ctx := context.Background()

	requested, err := signal.Requested(ctx, "nightly")
	require.NoError(t, err)
	assert.False(t, requested)

	require.NoError(t, signal.Request(ctx, "nightly"))
	assert.FileExists(t, filepath.Join(dir, "nightly.abort"))
	requested, err = signal.Requested(ctx, "nightly")
	require.NoError(t, err)
	assert.True(t, requested)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names, "markers are not schedules")

	require.NoError(t, signal.Acknowledge(ctx, "nightly"))
	requested, err = signal.Requested(ctx, "nightly")
	require.NoError(t, err)
	assert.False(t, requested)
	require.NoError(t, signal.Acknowledge(ctx, "nightly"), "acknowledging twice is harmless")
}
