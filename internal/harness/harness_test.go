package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: "commit expected to fail but succeeds"
flow:
  - op: insert
    role: leaf
    kind: note
    ref: a
  - op: commit_sync
    role: leaf
    expect: failed
assertions: []
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected failed, got ok")
}

func TestRun_AssertionFailuresReported(t *testing.T) {
	s := mustParse(t, `
name: wrong_assertions
description: "every assertion is wrong"
flow:
  - op: insert
    role: main
    kind: note
    ref: a
    attrs: { title: hi }
assertions:
  - type: count
    role: main
    kind: note
    count: 2
  - type: final_state
    role: main
    ref: a
    expect: { title: bye }
  - type: has_changes
    role: main
    changes: false
  - type: commit_order
    roles: [main]
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "Assertion failed: count")
	assert.Contains(t, result.Errors[1], "-want +got")
	assert.Contains(t, result.Errors[2], "has_changes")
	assert.Contains(t, result.Errors[3], "commit_order")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	s := mustParse(t, `
name: bad_setup
description: "setup update of an unknown ref"
setup:
  - op: update
    role: root
    ref: ghost
    attrs: { x: 1 }
flow:
  - op: reinit
assertions: []
`)
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0")
}

func TestRun_UpdateRemovesNullKeys(t *testing.T) {
	s := mustParse(t, `
name: null_removes
description: "null in an update drops the attribute"
flow:
  - op: insert
    role: leaf
    kind: note
    ref: a
    attrs: { title: hi, draft: true }
  - op: update
    role: leaf
    ref: a
    attrs: { draft: null }
  - op: commit_sync
    role: leaf
assertions:
  - type: final_state
    ref: a
    expect: { title: hi }
  - type: has_changes
    role: leaf
    changes: false
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalTrace_Deterministic(t *testing.T) {
	r := NewResult()
	r.AddTrace(TraceEvent{Seq: 1, Op: OpReinit, Result: ResultOK, Generation: 2})
	r.AddTrace(TraceEvent{Seq: 2, Op: OpDeleteObjects, Role: "main", Result: ResultOK})

	data, err := MarshalTrace("t", r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"t","trace":[{"generation":2,"op":"reinit","result":"ok","seq":1},{"op":"delete_objects","result":"ok","role":"main","scheduled":0,"seq":2}]}`,
		string(data))
}
