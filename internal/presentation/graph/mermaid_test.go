package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/sluice/internal/presentation/graph"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *domain.Schedule {
	t.Helper()
	s := domain.NewSchedule("nightly")
	require.NoError(t, s.AddFloatVariable("count", 0))
	require.NoError(t, s.AddBooleanVariable("done", false))
	require.NoError(t, s.AddJob("align", domain.JobModeNew))
	add, err := s.AddOperator(domain.NewOperator(domain.OpFloatPlusConst, "count", "1", "count"))
	require.NoError(t, err)
	gt, err := s.AddOperator(domain.NewOperator(domain.OpBoolGtConst, "count", "3", "done"))
	require.NoError(t, err)
	require.NoError(t, s.AddEdge("align", add))
	require.NoError(t, s.AddEdge(add, gt))
	require.NoError(t, s.AddFork(gt, "done", domain.NodeExit, domain.NodeWait))
	require.NoError(t, s.AddEdge(domain.NodeWait, "align"))
	require.NoError(t, s.SetOriginalStartNode("align"))
	return s
}

func TestGenerateMermaid(t *testing.T) {
	s := sample(t)
	got := graph.GenerateMermaid(s, nil)

	for _, want := range []string{
		"graph TD\n",
		`align(("align"))`,
		`count_count_PLUS_1["count=count_PLUS_1"]`,
		`WAIT{{"WAIT"}}`,
		`EXIT((("EXIT")))`,
		"align --> count_count_PLUS_1",
		`done_count_GT_3 -- "done" --> EXIT`,
		`done_count_GT_3 -. "not done" .-> WAIT`,
		"WAIT --> align",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	s := sample(t)
	require.NoError(t, s.AddJob("report", domain.JobModeNew))
	job := s.Jobs["report"]
	job.HasStarted = true
	job.CurrentName = "report_2"
	s.Jobs["report"] = job
	require.NoError(t, s.SetCurrentNode("report"))

	got := graph.GenerateMermaid(s, graph.OverlayFor(s))
	assert.Contains(t, got, `report[["report <br/> report_2"]]`)
	assert.Contains(t, got, "class report running;")
	assert.Contains(t, got, "class report current;")
}

func TestGenerateMermaid_Deterministic(t *testing.T) {
	s := sample(t)
	first := graph.GenerateMermaid(s, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, graph.GenerateMermaid(s.Clone(), nil))
	}
	assert.Equal(t, 1, strings.Count(first, "EXIT((("))
}
