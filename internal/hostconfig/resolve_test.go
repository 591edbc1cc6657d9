package hostconfig

import "testing"

// Scenario H — options setup.
func TestScenarioH_OptionsSetup(t *testing.T) {
	env := Env{
		EnvDynamicConcurrencyEnabled: "true",
		EnvWorkerRuntime:             "node",
	}
	options := Resolve(env, Tree{})
	if !options.Enabled {
		t.Fatal("expected enabled=true")
	}
	if options.MaxWorkerCount != DefaultMaxWorkerCount() {
		t.Errorf("MaxWorkerCount = %d, want %d", options.MaxWorkerCount, DefaultMaxWorkerCount())
	}

	env[EnvWorkerProcessCount] = "1"
	options = Resolve(env, Tree{})
	if options.Enabled {
		t.Fatal("expected enabled=false once WORKER_PROCESS_COUNT is set")
	}
	if options.MaxWorkerCount != 0 {
		t.Errorf("MaxWorkerCount = %d, want 0 (default, unresolved)", options.MaxWorkerCount)
	}
}

func TestResolve_MasterSwitchOff(t *testing.T) {
	options := Resolve(Env{}, Tree{})
	if options.Enabled {
		t.Fatal("expected disabled when master switch is unset")
	}
}

func TestResolve_PythonOverrideDisables(t *testing.T) {
	env := Env{
		EnvDynamicConcurrencyEnabled: "1",
		EnvPythonThreadpoolCount:     "4",
	}
	options := Resolve(env, Tree{})
	if options.Enabled {
		t.Fatal("expected disabled when PYTHON_THREADPOOL_THREAD_COUNT is set")
	}
}

func TestResolve_PowerShellOverrideDisables(t *testing.T) {
	env := Env{
		EnvDynamicConcurrencyEnabled: "true",
		EnvPSWorkerConcurrencyBound:  "2",
	}
	options := Resolve(env, Tree{})
	if options.Enabled {
		t.Fatal("expected disabled when PSWorkerInProcConcurrencyUpperBound is set")
	}
}

func TestResolve_BindsConfigSection(t *testing.T) {
	historySize := 20
	maxWorkers := 7
	threshold := 0.75
	checkInterval, err := ParseTimeSpan("00:00:02")
	if err != nil {
		t.Fatalf("ParseTimeSpan: %v", err)
	}
	ts := TimeSpan(checkInterval)

	tree := Tree{
		WorkerConcurrencyOptions: &ConcurrencySection{
			CheckInterval:    &ts,
			HistorySize:      &historySize,
			HistoryThreshold: &threshold,
			MaxWorkerCount:   &maxWorkers,
		},
	}
	env := Env{EnvDynamicConcurrencyEnabled: "true"}
	options := Resolve(env, tree)

	if options.CheckInterval != checkInterval {
		t.Errorf("CheckInterval = %v, want %v", options.CheckInterval, checkInterval)
	}
	if options.HistorySize != historySize {
		t.Errorf("HistorySize = %d, want %d", options.HistorySize, historySize)
	}
	if options.HistoryThreshold != threshold {
		t.Errorf("HistoryThreshold = %v, want %v", options.HistoryThreshold, threshold)
	}
	if options.MaxWorkerCount != maxWorkers {
		t.Errorf("MaxWorkerCount = %d, want %d (explicit override, no CPU fallback)", options.MaxWorkerCount, maxWorkers)
	}
}

func TestApplyWorkerEnv(t *testing.T) {
	pyEnv := ApplyWorkerEnv(nil, RuntimePython)
	if pyEnv[EnvPythonThreadpoolCount] != "1" {
		t.Errorf("expected PYTHON_THREADPOOL_THREAD_COUNT=1, got %q", pyEnv[EnvPythonThreadpoolCount])
	}

	psEnv := ApplyWorkerEnv(nil, RuntimePowerShell)
	if psEnv[EnvPSWorkerConcurrencyBound] != "1" {
		t.Errorf("expected PSWorkerInProcConcurrencyUpperBound=1, got %q", psEnv[EnvPSWorkerConcurrencyBound])
	}

	nodeEnv := ApplyWorkerEnv(nil, RuntimeNode)
	if len(nodeEnv) != 0 {
		t.Errorf("expected no env overrides for node, got %v", nodeEnv)
	}
}
