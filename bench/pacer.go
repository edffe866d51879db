package bench

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"
)

// ErrClosed is reported by a unit of work when its peer went away. The loop
// treats it as a clean stop, not a failure.
var ErrClosed = errors.New("bench: connection closed")

// UnitFunc performs one discrete transfer (one send or one receive) and
// reports how many bytes moved.
type UnitFunc func() (int, error)

// Pacer drives a loop at a target frequency by sleeping the residual of each
// iteration's interval. A slow iteration gets no sleep and no compensation on
// later iterations; a persistent overrun simply lowers the effective rate.
// Zero frequency means unlimited: the loop only yields between iterations.
type Pacer struct {
	interval time.Duration // 0 = unlimited
}

// NewPacer builds a pacer for the given target frequency in Hz. Zero means
// unlimited; anything negative or non-finite is rejected.
func NewPacer(frequency float64) (*Pacer, error) {
	if frequency < 0 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return nil, fmt.Errorf("bench: invalid target frequency %v", frequency)
	}
	p := &Pacer{}
	if frequency > 0 {
		p.interval = time.Duration(float64(time.Second) / frequency)
	}
	return p, nil
}

// Interval returns the per-iteration target, zero when unlimited.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Residual returns how long to sleep after an iteration that started at
// start and finished at now. Never negative.
func (p *Pacer) Residual(start, now time.Time) time.Duration {
	if p.interval == 0 {
		return 0
	}
	d := p.interval - now.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

// Run repeats unit until the context is cancelled or unit reports an error.
// ErrClosed stops the loop with a nil error; any other error propagates.
// onUnit, when non-nil, receives the byte count of every completed unit and
// is where callers feed an Accumulator.
func (p *Pacer) Run(ctx context.Context, unit UnitFunc, onUnit func(n int)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		n, err := unit()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		if onUnit != nil {
			onUnit(n)
		}

		if p.interval == 0 {
			runtime.Gosched()
			continue
		}
		if d := p.Residual(start, time.Now()); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}
