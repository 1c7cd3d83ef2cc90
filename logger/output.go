package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - User-facing output only: results, errors with hints
//	1 (-v)      - + progress, startup info, worker pool status
//	2 (-vv)     - + scheduler due-set detail, timing, config loaded, HTTP requests
//	3 (-vvv)    - + bus publish/subscribe, internal controller flow
//	4 (-vvvv)   - + store queries, full request/response bodies

// OutputCategory defines a category of output that can be enabled/disabled.
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // command/response output
	OutputErrors                           // errors with hints and resolution steps
	OutputUserStatus                       // final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress      // tick progress, catch-up counters
	OutputStartup       // startup banners, config summary
	OutputWorkerStatus  // worker pool started/stopped/saturated
	OutputOperationInfo // high-level operation summaries

	// Level 2 (-vv) - Detailed
	OutputSchedulerDueSet // scheduler due-set extraction detail
	OutputTiming          // operation timing (e.g. "tick took 4ms")
	OutputConfig          // config values loaded/applied
	OutputHTTPRequests    // incoming HTTP request method/path
	OutputHTTPStatus      // HTTP response status codes
	OutputStoreStats      // store connection pool statistics

	// Level 3 (-vvv) - Debug
	OutputBusEvents    // bus publish/subscribe/drop events
	OutputInternalFlow // controller lifecycle step tracing

	// Level 4 (-vvvv) - Full dump
	OutputStoreQueries // full SQL queries executed
	OutputHTTPBody     // full HTTP request/response bodies
	OutputDataDump     // full data structure contents
)

// categoryLevels maps each output category to its minimum verbosity level.
var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	OutputProgress:      VerbosityInfo,
	OutputStartup:       VerbosityInfo,
	OutputWorkerStatus:  VerbosityInfo,
	OutputOperationInfo: VerbosityInfo,

	OutputSchedulerDueSet: VerbosityDebug,
	OutputTiming:          VerbosityDebug,
	OutputConfig:          VerbosityDebug,
	OutputHTTPRequests:    VerbosityDebug,
	OutputHTTPStatus:      VerbosityDebug,
	OutputStoreStats:      VerbosityDebug,

	OutputBusEvents:    VerbosityTrace,
	OutputInternalFlow: VerbosityTrace,

	OutputStoreQueries: VerbosityAll,
	OutputHTTPBody:     VerbosityAll,
	OutputDataDump:     VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity.
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories.
var categoryNames = map[OutputCategory]string{
	OutputResults:         "results",
	OutputErrors:          "errors",
	OutputUserStatus:      "status",
	OutputProgress:        "progress",
	OutputStartup:         "startup",
	OutputWorkerStatus:    "worker-status",
	OutputOperationInfo:   "operation-info",
	OutputSchedulerDueSet: "scheduler-due-set",
	OutputTiming:          "timing",
	OutputConfig:          "config",
	OutputHTTPRequests:    "http-requests",
	OutputHTTPStatus:      "http-status",
	OutputStoreStats:      "store-stats",
	OutputBusEvents:       "bus-events",
	OutputInternalFlow:    "internal-flow",
	OutputStoreQueries:    "store-queries",
	OutputHTTPBody:        "http-body",
	OutputDataDump:        "data-dump",
}

// CategoryName returns the human-readable name for an output category.
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// EnabledCategories returns all output categories enabled at the given verbosity.
func EnabledCategories(verbosity int) []OutputCategory {
	var enabled []OutputCategory
	for cat, minLevel := range categoryLevels {
		if verbosity >= minLevel {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}

// VerbosityDescription returns a description of what's shown at each level.
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, progress, worker status"
	case VerbosityDebug:
		return "above + due-set detail, timing, config"
	case VerbosityTrace:
		return "above + bus events, controller flow"
	case VerbosityAll:
		return "above + store queries, full bodies"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}

// Scheduler output helpers

// ShouldShowDueSet returns true if scheduler due-set detail should be displayed.
func ShouldShowDueSet(verbosity int) bool {
	return ShouldOutput(verbosity, OutputSchedulerDueSet)
}

// ShouldShowStoreQueries returns true if full store queries should be displayed.
func ShouldShowStoreQueries(verbosity int) bool {
	return ShouldOutput(verbosity, OutputStoreQueries)
}

// Bus output helpers

// ShouldShowBusEvents returns true if bus publish/subscribe events should be displayed.
func ShouldShowBusEvents(verbosity int) bool {
	return ShouldOutput(verbosity, OutputBusEvents)
}

// Timing helpers

// SlowThresholdMS is the threshold in milliseconds above which timing is always shown.
const SlowThresholdMS = 100

// ShouldShowTiming returns true if timing info should be displayed.
// Shows if: verbosity >= 2 (-vv) OR operation exceeded slow threshold.
func ShouldShowTiming(verbosity int, durationMS int64) bool {
	if durationMS >= SlowThresholdMS {
		return true
	}
	return ShouldOutput(verbosity, OutputTiming)
}

// ShouldShowTimingAlways returns true if timing should always be shown (slow operation).
func ShouldShowTimingAlways(durationMS int64) bool {
	return durationMS >= SlowThresholdMS
}
