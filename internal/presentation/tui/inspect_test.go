package tui_test

import (
	"testing"

	"github.com/aretw0/sluice/internal/presentation/tui"
	"github.com/aretw0/sluice/internal/validator"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectMarkdown(t *testing.T) {
	s := domain.NewSchedule("nightly")
	s.Email = "ops@example.org"
	require.NoError(t, s.AddFloatVariable("count", 2))
	require.NoError(t, s.AddJob("align", domain.JobModeContinue))
	s.AddExitNode()
	require.NoError(t, s.AddEdge("align", domain.NodeExit))
	require.NoError(t, s.SetOriginalStartNode("align"))

	md := tui.InspectMarkdown(s, validator.Validate(s))

	assert.Contains(t, md, "# nightly")
	assert.Contains(t, md, "- **Current node:** `align`")
	assert.Contains(t, md, "| count | float | 2 | 2 |")
	assert.Contains(t, md, "| align | align | continue | false |")
	assert.Contains(t, md, "| align | EXIT |  |  |")
	assert.Contains(t, md, "variable 'count' is never used")
}

func TestInspectMarkdown_NoReport(t *testing.T) {
	md := tui.InspectMarkdown(domain.NewSchedule("empty"), nil)
	assert.NotContains(t, md, "## Validation")
	assert.NotContains(t, md, "## Variables")
}

func TestStatusLine(t *testing.T) {
	line := tui.StatusLine("nightly", domain.StatusDone, "EXIT")
	assert.Contains(t, line, "[done]")
	assert.Contains(t, line, "nightly at EXIT")
}
