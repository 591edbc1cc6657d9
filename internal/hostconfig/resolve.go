package hostconfig

import "github.com/functionshost/dynamicconcurrency/internal/concurrency"

// Resolve implements spec.md §4.3's precedence rules, producing the
// Options a ConcurrencyManager should be built with. It is evaluated once,
// at startup.
func Resolve(env Env, tree Tree) concurrency.Options {
	options := concurrency.DefaultOptions()

	enabledValue, _ := env.Lookup(EnvDynamicConcurrencyEnabled)
	if !isTruthy(enabledValue) {
		options.Enabled = false
		return options
	}

	if nonEmpty(env, EnvWorkerProcessCount) ||
		nonEmpty(env, EnvPythonThreadpoolCount) ||
		nonEmpty(env, EnvPSWorkerConcurrencyBound) {
		options.Enabled = false
		return options
	}

	options.Enabled = true
	bindSection(&options, tree.WorkerConcurrencyOptions)

	if options.MaxWorkerCount == 0 {
		options.MaxWorkerCount = DefaultMaxWorkerCount()
	}

	return options
}

func nonEmpty(env Env, key string) bool {
	v, ok := env.Lookup(key)
	return ok && v != ""
}

func bindSection(options *concurrency.Options, section *ConcurrencySection) {
	if section == nil {
		return
	}
	if section.CheckInterval != nil {
		options.CheckInterval = section.CheckInterval.Duration()
	}
	if section.AdjustmentPeriod != nil {
		options.AdjustmentPeriod = section.AdjustmentPeriod.Duration()
	}
	if section.HistorySize != nil {
		options.HistorySize = *section.HistorySize
	}
	if section.HistoryThreshold != nil {
		options.HistoryThreshold = *section.HistoryThreshold
	}
	if section.LatencyThreshold != nil {
		options.LatencyThreshold = section.LatencyThreshold.Duration()
	}
	if section.MaxWorkerCount != nil {
		options.MaxWorkerCount = *section.MaxWorkerCount
	}
}

// RuntimeFromEnv reads EnvWorkerRuntime, used only to pick which per-runtime
// env var ApplyWorkerEnv clears (spec.md §6).
func RuntimeFromEnv(env Env) Runtime {
	v, _ := env.Lookup(EnvWorkerRuntime)
	return Runtime(v)
}

// ApplyWorkerEnv implements spec.md §4.3's launcher rule: when dynamic
// concurrency is enabled, clear the per-runtime in-process concurrency cap
// so each worker process runs single-concurrency, since the host now
// provides horizontal scaling instead. It mutates workerEnv in place and
// returns it for convenience.
func ApplyWorkerEnv(workerEnv map[string]string, runtime Runtime) map[string]string {
	if workerEnv == nil {
		workerEnv = map[string]string{}
	}
	switch runtime {
	case RuntimePython:
		workerEnv[EnvPythonThreadpoolCount] = "1"
	case RuntimePowerShell:
		workerEnv[EnvPSWorkerConcurrencyBound] = "1"
	}
	return workerEnv
}
