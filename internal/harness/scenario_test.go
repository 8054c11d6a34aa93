package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestParseScenario_Valid(t *testing.T) {
	s := mustParse(t, `
name: ok
description: "valid"
flow:
  - op: delete_objects
    role: main
    owner: leaf
    refs: [a, b]
    save: true
assertions:
  - type: trace_count
    op: delete_objects
    count: 1
`)
	assert.Equal(t, "ok", s.Name)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, []string{"a", "b"}, s.Flow[0].Refs)
	assert.True(t, s.Flow[0].Save)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: x\ndescription: d\nflow: [{op: reinit}]\nassertion: []\n", "field assertion not found"},
		{"missing name", "description: d\nflow: [{op: reinit}]\n", "name is required"},
		{"missing description", "name: x\nflow: [{op: reinit}]\n", "description is required"},
		{"empty flow", "name: x\ndescription: d\nflow: []\n", "flow list is required"},
		{"unknown op", "name: x\ndescription: d\nflow: [{op: explode}]\n", `unknown op "explode"`},
		{"missing role", "name: x\ndescription: d\nflow: [{op: commit_sync}]\n", "role is required"},
		{"bad role", "name: x\ndescription: d\nflow: [{op: reset, role: trunk}]\n", "role"},
		{"insert without ref", "name: x\ndescription: d\nflow: [{op: insert, role: leaf, kind: note}]\n", "needs kind and ref"},
		{"bad fail role", "name: x\ndescription: d\nflow: [{op: commit_sync, role: leaf, fail: [trunk]}]\n", "fail"},
		{"bad assertion", "name: x\ndescription: d\nflow: [{op: reinit}]\nassertions: [{type: vibes}]\n", `unknown assertion type "vibes"`},
		{"final_state without expect", "name: x\ndescription: d\nflow: [{op: reinit}]\nassertions: [{type: final_state, ref: a}]\n", "expect or absent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadDir(dir)
	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)

	body := "name: same\ndescription: d\nflow: [{op: reinit}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(body), 0o644))
	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "same" defined in both a.yaml and b.yml`)
}
