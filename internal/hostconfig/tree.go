package hostconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tree is the bindable shape of the host's WorkerConcurrencyOptions
// configuration section (spec.md §6). Every field is a pointer so that an
// unspecified field in the config file is distinguishable from an
// explicit zero, letting Resolve keep Options' defaults for anything the
// operator didn't set.
type Tree struct {
	WorkerConcurrencyOptions *ConcurrencySection `yaml:"workerConcurrencyOptions"`
}

// ConcurrencySection mirrors internal/concurrency.Options' bindable
// fields.
type ConcurrencySection struct {
	CheckInterval    *TimeSpan `yaml:"checkInterval"`
	AdjustmentPeriod *TimeSpan `yaml:"adjustmentPeriod"`
	HistorySize      *int      `yaml:"historySize"`
	HistoryThreshold *float64  `yaml:"historyThreshold"`
	LatencyThreshold *TimeSpan `yaml:"latencyThreshold"`
	MaxWorkerCount   *int      `yaml:"maxWorkerCount"`
}

// LoadTree reads and parses a YAML configuration file. A missing path is
// not an error: it returns an empty Tree, since the WorkerConcurrencyOptions
// section is entirely optional (spec.md §4.3 rule 3: "unspecified fields
// keep their defaults").
func LoadTree(path string) (Tree, error) {
	if path == "" {
		return Tree{}, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Tree{}, nil
	}
	if err != nil {
		return Tree{}, fmt.Errorf("hostconfig: reading config %q: %w", path, err)
	}

	var tree Tree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return Tree{}, fmt.Errorf("hostconfig: parsing config %q: %w", path, err)
	}
	return tree, nil
}
