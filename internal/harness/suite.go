package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ScenarioNotFoundError is returned when a scenario directory holds no
// scenario files.
type ScenarioNotFoundError struct {
	Dir string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("no scenario files (*.yaml, *.yml) in %s", e.Dir)
}

// LoadDir loads every scenario in dir, ordered by file name. Scenario names
// must be unique since they name golden files.
func LoadDir(dir string) ([]*Scenario, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenario dir: %w", err)
	}

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, &ScenarioNotFoundError{Dir: dir}
	}
	slices.Sort(paths)

	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("scenario %q defined in both %s and %s", s.Name, prev, filepath.Base(p))
		}
		seen[s.Name] = filepath.Base(p)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
