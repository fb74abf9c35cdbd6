package dsl

import (
	"testing"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_CounterLoop(t *testing.T) {
	b := New("counter").Email("ops@example.org")
	b.Float("count", 0).Bool("enough", false)

	inc := b.Op(domain.OpFloatPlusConst, "count", "1", "count").Start()
	cmp := b.Op(domain.OpBoolGtConst, "count", "3", "enough")
	inc.Go(cmp)
	cmp.Fork("enough", b.Exit(), inc)

	s, report, err := b.Build()
	require.NoError(t, err)
	assert.Empty(t, report.Warnings())

	assert.Equal(t, "count=count_PLUS_1", inc.Name())
	assert.Equal(t, inc.Name(), s.OriginalStartNode)
	assert.Equal(t, inc.Name(), s.CurrentNode)
	assert.Equal(t, "ops@example.org", s.Email)

	edge, ok := s.Outgoing(cmp.Name())
	require.True(t, ok)
	assert.True(t, edge.IsFork)
	assert.Equal(t, domain.NodeExit, edge.To)
	assert.Equal(t, inc.Name(), edge.ToIfFalse)
}

func TestBuilder_ForwardReference(t *testing.T) {
	b := New("pipeline")
	align := b.Job("align", domain.JobModeNew).Start()
	report := b.Job("report", domain.JobModeOverwrite)
	align.Go(b.Wait())
	b.Wait().Go(report)
	report.Go(b.Exit())

	s, _, err := b.Build()
	require.NoError(t, err)
	next, err := s.NextNode(domain.NodeWait)
	require.NoError(t, err)
	assert.Equal(t, "report", next)
}

func TestBuilder_CollectsErrors(t *testing.T) {
	b := New("broken")
	b.Float("x", 1).Bool("x", true)
	a := b.Job("a", domain.JobModeNew).Start()
	a.Go(b.Exit())
	a.Go(b.Wait())

	_, _, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNameCollision)
	assert.ErrorIs(t, err, domain.ErrAmbiguousBranch)
}

func TestBuilder_RejectsInvalidSchedule(t *testing.T) {
	b := New("dangling")
	b.Float("count", 0)
	b.Op(domain.OpFloatPlusConst, "count", "1", "total").Start()

	_, report, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	require.NotNil(t, report)
	assert.False(t, report.Valid())
}
