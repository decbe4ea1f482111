package util

import "time"

// Stopwatch measures elapsed time from a fixed start.
type Stopwatch struct {
	start time.Time
}

// StartStopwatch creates a stopwatch starting now.
func StartStopwatch() Stopwatch {
	return Stopwatch{start: time.Now()}
}

// Elapsed returns the duration since start, or zero for an unstarted stopwatch.
func (s Stopwatch) Elapsed() time.Duration {
	if s.start.IsZero() {
		return 0
	}
	return time.Since(s.start)
}

// ElapsedMs returns the elapsed milliseconds since start.
func (s Stopwatch) ElapsedMs() int64 {
	return s.Elapsed().Milliseconds()
}
