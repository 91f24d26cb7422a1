/*
Package log provides structured logging for modelctl using zerolog.

The log package wraps zerolog with a package-level Logger, component-scoped
child loggers, and a tee to the persisted run log. Every line carries a
timestamp and a severity tag, is streamed live to the console, and is
appended to the run log so an operator can review a deployment after the
terminal is gone.

# Architecture

	┌──────────────────── LOGGING SYSTEM ─────────────────────┐
	│                                                           │
	│  log.Init(Config)                                         │
	│      │                                                    │
	│      ▼                                                    │
	│  zerolog.MultiLevelWriter                                 │
	│      ├── console writer  → stdout (colors, RFC3339)       │
	│      └── console writer  → run log file (no colors)       │
	│                                                           │
	│  WithComponent("rollout") / WithRunID(id)                 │
	│      child loggers adding context fields                  │
	└───────────────────────────────────────────────────────────┘

With JSONOutput both sinks receive JSON lines instead of console text.

# Run Log

RunLogPath builds the per-run file name:

	<dir>/modelctl-<model>-<env>-<YYYYmmdd-HHMMSS>.log

OpenRunLog creates the directory and opens the file in append mode. The
caller owns the returned file and closes it when the run ends.

# Usage

	path := log.RunLogPath(logDir, "llama-7b", "staging", time.Now())
	f, err := log.OpenRunLog(path)
	if err != nil {
		return err
	}
	defer f.Close()

	log.Init(log.Config{Level: log.InfoLevel, RunLog: f})

	logger := log.WithComponent("namespace")
	logger.Info().Str("namespace", ns).Msg("Namespace created")

# Levels

--verbose selects DebugLevel; otherwise InfoLevel. Warnings from
non-fatal findings (saturated accelerators, missing endpoints, missing
routes) are logged at WarnLevel; fatal stage failures at ErrorLevel.
*/
package log
