package bench

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewPacerValidation(t *testing.T) {
	for _, freq := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := NewPacer(freq); err == nil {
			t.Errorf("frequency %v: expected error", freq)
		}
	}

	p, err := NewPacer(10)
	if err != nil {
		t.Fatalf("NewPacer(10) failed: %v", err)
	}
	if p.Interval() != 100*time.Millisecond {
		t.Errorf("interval: got %v, want 100ms", p.Interval())
	}

	unlimited, err := NewPacer(0)
	if err != nil {
		t.Fatalf("NewPacer(0) failed: %v", err)
	}
	if unlimited.Interval() != 0 {
		t.Errorf("unlimited interval: got %v, want 0", unlimited.Interval())
	}
}

func TestResidualFastWork(t *testing.T) {
	p, err := NewPacer(10) // 100ms interval
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}

	start := time.Now()
	got := p.Residual(start, start.Add(20*time.Millisecond))
	if got != 80*time.Millisecond {
		t.Errorf("residual: got %v, want 80ms", got)
	}
}

func TestResidualSlowWork(t *testing.T) {
	p, err := NewPacer(10)
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}

	// Work exceeding the interval gets no sleep and no negative value;
	// the overrun is not made up on later iterations.
	start := time.Now()
	if got := p.Residual(start, start.Add(150*time.Millisecond)); got != 0 {
		t.Errorf("residual under overrun: got %v, want 0", got)
	}
}

func TestResidualUnlimited(t *testing.T) {
	p, err := NewPacer(0)
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}
	start := time.Now()
	if got := p.Residual(start, start.Add(time.Nanosecond)); got != 0 {
		t.Errorf("unlimited residual: got %v, want 0", got)
	}
}

func TestRunStopsCleanlyOnClosed(t *testing.T) {
	p, err := NewPacer(0)
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}

	iterations := 0
	unit := func() (int, error) {
		iterations++
		if iterations > 5 {
			return 0, ErrClosed
		}
		return 64, nil
	}

	var reported int
	err = p.Run(context.Background(), unit, func(n int) { reported += n })
	if err != nil {
		t.Errorf("ErrClosed must stop the loop cleanly, got %v", err)
	}
	if reported != 5*64 {
		t.Errorf("reported bytes: got %d, want %d", reported, 5*64)
	}
}

func TestRunPropagatesUnitError(t *testing.T) {
	p, err := NewPacer(0)
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}

	boom := errors.New("payload generation failed")
	got := p.Run(context.Background(), func() (int, error) { return 0, boom }, nil)
	if !errors.Is(got, boom) {
		t.Errorf("got %v, want %v", got, boom)
	}
}

func TestRunContextCancel(t *testing.T) {
	p, err := NewPacer(2) // 500ms interval, long enough to be cancelled mid-sleep
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := p.Run(ctx, func() (int, error) { return 1, nil }, nil)
	elapsed := time.Since(start)

	if got != context.DeadlineExceeded {
		t.Errorf("got %v, want %v", got, context.DeadlineExceeded)
	}
	if elapsed > 400*time.Millisecond {
		t.Errorf("cancel took too long: %v", elapsed)
	}
}

func TestRunPacesIterations(t *testing.T) {
	p, err := NewPacer(50) // 20ms interval
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}

	iterations := 0
	unit := func() (int, error) {
		iterations++
		if iterations > 10 {
			return 0, ErrClosed
		}
		return 1, nil
	}

	start := time.Now()
	if err := p.Run(context.Background(), unit, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	// 10 paced iterations at 20ms each. Allow generous scheduling slack.
	expectedMin := 160 * time.Millisecond
	expectedMax := 500 * time.Millisecond
	if elapsed < expectedMin || elapsed > expectedMax {
		t.Errorf("pacing out of range: got %v, expected %v to %v", elapsed, expectedMin, expectedMax)
	}
}

func TestRunUnlimitedDoesNotSleep(t *testing.T) {
	p, err := NewPacer(0)
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}

	iterations := 0
	unit := func() (int, error) {
		iterations++
		if iterations > 1000 {
			return 0, ErrClosed
		}
		return 1, nil
	}

	start := time.Now()
	if err := p.Run(context.Background(), unit, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	// 1000 yield-only iterations should be near-instant; any fixed sleep
	// per iteration would blow way past this.
	if elapsed > 500*time.Millisecond {
		t.Errorf("unlimited mode too slow: %v for %d iterations", elapsed, iterations)
	}
}

// TestPacedStreamMeasuredRate drives a pacer into an accumulator for one
// second of wall time: 100 Hz sending 1024-byte frames should measure about
// 100 msg/sec and 819200 bits/sec.
func TestPacedStreamMeasuredRate(t *testing.T) {
	p, err := NewPacer(100)
	if err != nil {
		t.Fatalf("NewPacer failed: %v", err)
	}
	acc, err := NewAccumulator(time.Now(), DefaultReportInterval)
	if err != nil {
		t.Fatalf("NewAccumulator failed: %v", err)
	}

	var snaps []Snapshot
	ctx, cancel := context.WithTimeout(context.Background(), 1050*time.Millisecond)
	defer cancel()

	runErr := p.Run(ctx, func() (int, error) { return 1024, nil }, func(n int) {
		acc.Record(n)
		if snap, ok := acc.MaybeSnapshot(time.Now()); ok {
			snaps = append(snaps, snap)
		}
	})
	if runErr != context.DeadlineExceeded {
		t.Fatalf("Run: got %v, want %v", runErr, context.DeadlineExceeded)
	}

	if len(snaps) != 1 {
		t.Fatalf("snapshot count: got %d, want 1", len(snaps))
	}

	// Allow ±15% for scheduler timing.
	snap := snaps[0]
	if snap.EventsPerSec < 85 || snap.EventsPerSec > 115 {
		t.Errorf("events/sec: got %.2f, expected ~100", snap.EventsPerSec)
	}
	if snap.BitsPerSec < 819200*0.85 || snap.BitsPerSec > 819200*1.15 {
		t.Errorf("bits/sec: got %.0f, expected ~819200", snap.BitsPerSec)
	}
}
