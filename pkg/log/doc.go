/*
Package log provides structured logging for reconf using zerolog.

The package holds a global zerolog logger configured once by Init, and
helpers creating child loggers that carry the entity a message is about.

# Architecture

	┌──────────────────── LOGGING SYSTEM ─────────────────────┐
	│                                                           │
	│  ┌──────────────────────────────────────────┐            │
	│  │            Global Logger                  │            │
	│  │  - zerolog instance, Nop until Init       │            │
	│  │  - Level: debug/info/warn/error           │            │
	│  │  - Format: JSON or console                │            │
	│  └──────────────────┬───────────────────────┘            │
	│                     │                                     │
	│  ┌──────────────────▼───────────────────────┐            │
	│  │         Child Loggers                     │            │
	│  │  - WithComponent("planner")               │            │
	│  │  - WithProblem(problemID)                 │            │
	│  └──────────────────────────────────────────┘            │
	└───────────────────────────────────────────────────────────┘

# Levels

Propagation failures are routine during search and are only logged at
debug level. Problems that cannot be built are logged at warn level, and
extracted plans at info level with their size and duration.

# Usage

	log.Init(log.Config{
		Level:      log.ParseLevel("debug"),
		JSONOutput: true,
		Output:     os.Stderr,
	})

	logger := log.WithComponent("planner")
	logger.Info().
		Str("plan", pl.ID).
		Int("actions", pl.Size()).
		Msg("Plan computed")

Console output:

	10:30:00 INF Plan computed actions=3 component=planner plan=5f0c...
*/
package log
