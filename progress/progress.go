package progress

import "time"

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

var defaultTimeProvider TimeProvider = DefaultTimeProvider{}

// Snapshot is an immutable record of transfer progress at a point in time.
// Derived quantities (percentage, speed, ETA) are computed from the stored
// counters rather than stored themselves.
type Snapshot struct {
	BytesTransferred int64
	TotalBytes       int64
	StartTime        time.Time
	LastUpdateTime   time.Time
}

// Start returns the initial snapshot for a transfer of totalBytes.
func Start(totalBytes int64) Snapshot {
	now := defaultTimeProvider.Now()
	return Snapshot{
		TotalBytes:     totalBytes,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update returns a new snapshot with the byte counter advanced to transferred.
func (s Snapshot) Update(transferred int64) Snapshot {
	s.BytesTransferred = transferred
	s.LastUpdateTime = defaultTimeProvider.Now()
	return s
}

// Finish returns the terminal snapshot with all bytes accounted for.
func (s Snapshot) Finish() Snapshot {
	s.BytesTransferred = s.TotalBytes
	s.LastUpdateTime = defaultTimeProvider.Now()
	return s
}

// Percentage returns completion as 0-100, or 0 when the total is unknown.
func (s Snapshot) Percentage() float64 {
	if s.TotalBytes <= 0 {
		return 0
	}
	return 100 * float64(s.BytesTransferred) / float64(s.TotalBytes)
}

// Complete reports whether every byte of a known total has been transferred.
func (s Snapshot) Complete() bool {
	return s.TotalBytes > 0 && s.BytesTransferred >= s.TotalBytes
}

// Speed returns the mean transfer rate in bytes per second since StartTime,
// or 0 when no time has elapsed.
func (s Snapshot) Speed() float64 {
	elapsed := s.LastUpdateTime.Sub(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.BytesTransferred) / elapsed
}

// ETA estimates the remaining transfer time from the mean speed. It is zero
// for a complete transfer or when the speed is unknown.
func (s Snapshot) ETA() time.Duration {
	if s.Complete() {
		return 0
	}
	speed := s.Speed()
	if speed <= 0 {
		return 0
	}
	remaining := float64(s.TotalBytes-s.BytesTransferred) / speed
	return time.Duration(remaining * float64(time.Second))
}
