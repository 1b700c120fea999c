package generator

import (
	"context"
	"time"
)

// ProgressFunc receives a completion fraction in (0, 1]
type ProgressFunc func(fraction float64)

// Pacer spreads progress checkpoints over the keys of a finished report.
// The report is complete before pacing starts; the checkpoints only give
// viewers a steady progress signal.
type Pacer struct {
	Pace  time.Duration
	Sleep Sleeper
}

// Emit waits Pace before each of the N keys and then reports k/N. The last
// call always reports exactly 1.0.
func (p Pacer) Emit(ctx context.Context, keys []string, progress ProgressFunc) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	total := len(keys)
	for k := 1; k <= total; k++ {
		if err := sleep(ctx, p.Pace); err != nil {
			return err
		}
		fraction := float64(k) / float64(total)
		if k == total {
			fraction = 1.0
		}
		if progress != nil {
			progress(fraction)
		}
	}
	return nil
}
