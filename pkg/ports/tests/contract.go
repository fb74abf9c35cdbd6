package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SampleSchedule builds a schedule that touches every persisted field.
func SampleSchedule(t *testing.T, name string) *domain.Schedule {
	t.Helper()
	s := domain.NewSchedule(name)
	s.Email = "ops@example.org"
	require.NoError(t, s.AddFloatVariable("count", 0))
	require.NoError(t, s.Variables.SetFloat("count", 2))
	require.NoError(t, s.AddBooleanVariable("enough", false))
	require.NoError(t, s.AddStringVariable("movies", "Import/job001/movies.star"))

	inc, err := s.AddOperator(domain.NewOperator(domain.OpFloatPlusConst, "count", "1", "count"))
	require.NoError(t, err)
	cmp, err := s.AddOperator(domain.NewOperator(domain.OpBoolGtConst, "count", "3", "enough"))
	require.NoError(t, err)
	require.NoError(t, s.AddJob("align", domain.JobModeContinue))
	job := s.Jobs["align"]
	job.HasStarted = true
	job.CurrentName = "align_2"
	s.Jobs["align"] = job
	s.AddExitNode()

	require.NoError(t, s.AddEdge("align", inc))
	require.NoError(t, s.AddEdge(inc, cmp))
	require.NoError(t, s.AddFork(cmp, "enough", domain.NodeExit, "align"))
	require.NoError(t, s.SetOriginalStartNode("align"))
	require.NoError(t, s.SetCurrentNode(cmp))
	return s
}

// RunScheduleStoreContract runs a suite of tests to verify that a ScheduleStore
// implementation adheres to the defined interface contract.
func RunScheduleStoreContract(t *testing.T, store ports.ScheduleStore) {
	ctx := context.Background()
	name := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		s := SampleSchedule(t, name)
		require.NoError(t, store.Save(ctx, s), "Save should not return error")

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s, loaded, "round trip must preserve every field")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		s := SampleSchedule(t, name)
		require.NoError(t, s.Variables.SetFloat("count", 4))
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		count, err := loaded.Variables.GetFloat("count")
		require.NoError(t, err)
		assert.Equal(t, 4.0, count)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrScheduleNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, SampleSchedule(t, name)))
		require.NoError(t, store.Delete(ctx, name), "Delete should not return error")

		_, err := store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrScheduleNotFound, "Load after Delete should return ErrScheduleNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := name + "-1"
		id2 := name + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSchedule(id1)))
		require.NoError(t, store.Save(ctx, domain.NewSchedule(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, id1)
		assert.Contains(t, names, id2)
	})
}
