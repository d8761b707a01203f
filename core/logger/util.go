package logger

import "time"

// Took is the time elapsed since start, rounded by RoundMS.
func Took(start time.Time) time.Duration { return RoundMS(time.Since(start)) }

// RoundMS rounds d to whole milliseconds. Negative durations become zero.
func RoundMS(d time.Duration) time.Duration { return max(d, 0).Round(time.Millisecond) }
