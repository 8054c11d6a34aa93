package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cascade/internal/record"
)

// TraceSnapshot captures the trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot to a record.Map so it can be
// written as canonical JSON.
func (s *TraceSnapshot) toCanonicalMap() record.Map {
	trace := make(record.List, len(s.Trace))
	for i, ev := range s.Trace {
		m := record.Map{
			"seq":    record.Int(ev.Seq),
			"op":     record.String(ev.Op),
			"result": record.String(ev.Result),
		}
		if ev.Role != "" {
			m["role"] = record.String(ev.Role)
		}
		if ev.Ref != "" {
			m["ref"] = record.String(ev.Ref)
		}
		if ev.ID != "" {
			m["id"] = record.String(ev.ID)
		}
		if len(ev.Commits) > 0 {
			commits := make(record.List, len(ev.Commits))
			for j, r := range ev.Commits {
				commits[j] = record.String(r)
			}
			m["commits"] = commits
		}
		if ev.Op == OpDeleteObjects {
			m["scheduled"] = record.Int(ev.Scheduled)
		}
		if ev.Generation != 0 {
			m["generation"] = record.Int(ev.Generation)
		}
		trace[i] = m
	}
	return record.Map{
		"scenario_name": record.String(s.ScenarioName),
		"trace":         trace,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return record.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden. Regenerate with
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares a result's trace against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
