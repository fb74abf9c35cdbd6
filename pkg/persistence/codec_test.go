package persistence

import (
	"testing"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			s := tests.SampleSchedule(t, "roundtrip")

			data, err := Marshal(s, format)
			require.NoError(t, err)

			loaded, err := Unmarshal(data, format)
			require.NoError(t, err)
			assert.Equal(t, s, loaded)

			again, err := Marshal(loaded, format)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again), "encoding must be stable")
		})
	}
}

func TestRoundTrip_EmptySchedule(t *testing.T) {
	s := domain.NewSchedule("empty")

	data, err := Marshal(s, FormatYAML)
	require.NoError(t, err)

	loaded, err := Unmarshal(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestUnmarshal_Defaults(t *testing.T) {
	doc := `
name: defaults
current_node: align
original_start_node: align
floats:
  - name: count
    value: 3
strings:
  - name: path
    value: 42
jobs:
  - name: align
edges:
  - input: align
    output: EXIT
operators:
  - name: EXIT
    type: exit
`
	s, err := Unmarshal([]byte(doc), FormatYAML)
	require.NoError(t, err)

	orig, err := s.Variables.GetOriginalFloat("count")
	require.NoError(t, err)
	assert.Equal(t, 3.0, orig, "original defaults to the current value")

	path, err := s.Variables.GetString("path")
	require.NoError(t, err)
	assert.Equal(t, "42", path)

	job := s.Jobs["align"]
	assert.Equal(t, domain.JobModeNew, job.Mode)
	assert.Equal(t, "align", job.CurrentName)
	assert.False(t, job.HasStarted)

	exit := s.Operators[domain.NodeExit]
	assert.Equal(t, domain.Undefined, exit.Input1)
	assert.Equal(t, domain.Undefined, exit.Output)
}

func TestUnmarshal_FailsClosed(t *testing.T) {
	cases := map[string]struct {
		doc   string
		field string
	}{
		"missing current node": {
			doc:   "name: x\noriginal_start_node: undefined\n",
			field: "current_node",
		},
		"dangling current node": {
			doc:   "name: x\ncurrent_node: ghost\noriginal_start_node: align\njobs:\n  - name: align\n",
			field: "current_node",
		},
		"undefined position with nodes": {
			doc:   "name: x\ncurrent_node: align\noriginal_start_node: undefined\njobs:\n  - name: align\n",
			field: "original_start_node",
		},
		"unknown operator": {
			doc:   "name: x\ncurrent_node: undefined\noriginal_start_node: undefined\noperators:\n  - name: op\n    type: float_op_pow\n",
			field: "operators.op",
		},
		"unknown job mode": {
			doc:   "name: x\ncurrent_node: a\noriginal_start_node: a\njobs:\n  - name: a\n    mode: later\n",
			field: "jobs.a",
		},
		"variable declared twice": {
			doc:   "name: x\ncurrent_node: undefined\noriginal_start_node: undefined\nfloats:\n  - name: v\n    value: 1\nbooleans:\n  - name: v\n    value: true\n",
			field: "variables",
		},
		"operator declared twice": {
			doc:   "name: x\ncurrent_node: step\noriginal_start_node: step\nfloats:\n  - name: n\n    value: 1\noperators:\n  - name: step\n    type: float_op_plus_const\n    input1: n\n    input2: 1\n    output: n\n  - name: step\n    type: float_op_minus_const\n    input1: n\n    input2: 5\n    output: n\n",
			field: "operators.step",
		},
		"job shares an operator name": {
			doc:   "name: x\ncurrent_node: step\noriginal_start_node: step\nfloats:\n  - name: n\n    value: 1\noperators:\n  - name: step\n    type: float_op_plus_const\n    input1: n\n    input2: 1\n    output: n\njobs:\n  - name: step\n",
			field: "jobs.step",
		},
		"job declared twice": {
			doc:   "name: x\ncurrent_node: a\noriginal_start_node: a\njobs:\n  - name: a\n  - name: a\n    mode: overwrite\n",
			field: "jobs.a",
		},
		"job named WAIT": {
			doc:   "name: x\ncurrent_node: a\noriginal_start_node: a\njobs:\n  - name: a\n  - name: WAIT\n",
			field: "jobs.WAIT",
		},
		"operator named EXIT": {
			doc:   "name: x\ncurrent_node: undefined\noriginal_start_node: undefined\nfloats:\n  - name: n\n    value: 1\noperators:\n  - name: EXIT\n    type: float_op_plus_const\n    input1: n\n    input2: 1\n    output: n\n",
			field: "operators.EXIT",
		},
		"fork without condition": {
			doc:   "name: x\ncurrent_node: a\noriginal_start_node: a\njobs:\n  - name: a\nedges:\n  - input: a\n    output: EXIT\n    is_fork: true\n",
			field: "edges[0]",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tc.doc), FormatYAML)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tc.field, decodeErr.Field)
		})
	}
}

func TestUnmarshal_Malformed(t *testing.T) {
	_, err := Unmarshal([]byte("name: [unterminated"), FormatYAML)
	assert.Error(t, err)

	_, err = Unmarshal([]byte("{"), FormatJSON)
	assert.Error(t, err)
}
