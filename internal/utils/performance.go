package utils

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	slowOperation = 30 * time.Second
	slowQuery     = 5 * time.Second
)

// OperationTimer returns a func that logs how long an operation took once
// called. Slow operations are raised to warn level.
//
// Usage:
//
//	defer utils.OperationTimer("reconstruct_tables", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()
	return func() {
		elapsed, level := measure(start, slowOperation)
		log.WithLevel(level).
			Str("operation", operation).
			Dur("duration_ms", elapsed).
			Msg("Operation completed")
	}
}

// MeasureDBQuery times a store query; the returned func takes the number of
// rows the query touched.
func MeasureDBQuery(queryName string, log zerolog.Logger) func(rows int64) {
	start := time.Now()
	return func(rows int64) {
		elapsed, level := measure(start, slowQuery)
		log.WithLevel(level).
			Str("query", queryName).
			Dur("duration_ms", elapsed).
			Int64("rows", rows).
			Msg("Database query completed")
	}
}

func measure(start time.Time, slow time.Duration) (time.Duration, zerolog.Level) {
	elapsed := time.Since(start)
	if elapsed > slow {
		return elapsed, zerolog.WarnLevel
	}
	return elapsed, zerolog.DebugLevel
}
