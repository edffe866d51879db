package bench

import (
	"fmt"
	"time"
)

// DefaultReportInterval is the cadence of the once-per-second stats lines.
const DefaultReportInterval = time.Second

// Snapshot is the throughput measured over one completed reporting window.
// TotalBytes and TotalEvents are session-lifetime running totals and are
// never reset by the window rollover.
type Snapshot struct {
	Events       int64
	Bytes        int64
	Elapsed      time.Duration
	EventsPerSec float64
	BitsPerSec   float64
	TotalEvents  int64
	TotalBytes   int64
}

// Summary is the session-lifetime view, printed once when a session ends.
type Summary struct {
	TotalEvents  int64
	TotalBytes   int64
	Elapsed      time.Duration
	EventsPerSec float64
	BitsPerSec   float64
	AvgSize      float64
	MinSize      int64
	MaxSize      int64
}

// Accumulator counts transfer events over fixed reporting windows and keeps
// session totals on the side. Each connection owns exactly one; it is not
// safe for concurrent use and does not need to be.
type Accumulator struct {
	interval    time.Duration
	windowStart time.Time
	events      int64
	bytes       int64

	started     time.Time
	totalEvents int64
	totalBytes  int64
	minSize     int64
	maxSize     int64
}

// NewAccumulator starts a measurement session at now. The interval must be
// positive.
func NewAccumulator(now time.Time, interval time.Duration) (*Accumulator, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("bench: report interval must be positive, got %v", interval)
	}
	return &Accumulator{
		interval:    interval,
		windowStart: now,
		started:     now,
	}, nil
}

// Record counts one transfer event of n bytes. A zero-length transfer is a
// valid event that contributes no bytes.
func (a *Accumulator) Record(n int) {
	size := int64(n)
	a.events++
	a.bytes += size

	if a.totalEvents == 0 || size < a.minSize {
		a.minSize = size
	}
	if size > a.maxSize {
		a.maxSize = size
	}
	a.totalEvents++
	a.totalBytes += size
}

// MaybeSnapshot emits the current window if the reporting interval has
// elapsed, resetting the window counters and window start in the same step.
// Until the interval is due it reports false and changes nothing.
func (a *Accumulator) MaybeSnapshot(now time.Time) (Snapshot, bool) {
	elapsed := now.Sub(a.windowStart)
	if elapsed < a.interval {
		return Snapshot{}, false
	}

	snap := Snapshot{
		Events:      a.events,
		Bytes:       a.bytes,
		Elapsed:     elapsed,
		TotalEvents: a.totalEvents,
		TotalBytes:  a.totalBytes,
	}
	// A zero-length window reports zero rates rather than dividing by it.
	if secs := elapsed.Seconds(); secs > 0 {
		snap.EventsPerSec = float64(a.events) / secs
		snap.BitsPerSec = float64(a.bytes) * 8 / secs
	}

	a.events = 0
	a.bytes = 0
	a.windowStart = now
	return snap, true
}

// Summary reports the session totals since construction. It reports false
// when no event was ever recorded, in which case callers print nothing.
func (a *Accumulator) Summary(now time.Time) (Summary, bool) {
	if a.totalEvents == 0 {
		return Summary{}, false
	}

	sum := Summary{
		TotalEvents: a.totalEvents,
		TotalBytes:  a.totalBytes,
		Elapsed:     now.Sub(a.started),
		AvgSize:     float64(a.totalBytes) / float64(a.totalEvents),
		MinSize:     a.minSize,
		MaxSize:     a.maxSize,
	}
	if secs := sum.Elapsed.Seconds(); secs > 0 {
		sum.EventsPerSec = float64(a.totalEvents) / secs
		sum.BitsPerSec = float64(a.totalBytes) * 8 / secs
	}
	return sum, true
}
