package wallet

import (
	"context"
	"fmt"
	"time"

	"cosmterm/pkg/config"
)

// DetectOptions bounds the detection loop.
type DetectOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// DefaultDetectOptions polls every 500ms, 10 times, for at most 10s.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		Interval:    500 * time.Millisecond,
		MaxAttempts: 10,
		Timeout:     10 * time.Second,
	}
}

// DetectOptionsFromConfig reads the wallet_detect_* settings.
func DetectOptionsFromConfig(g config.GlobalConfig) DetectOptions {
	return DetectOptions{
		Interval:    g.DetectInterval(),
		MaxAttempts: g.WalletDetectAttempts,
		Timeout:     g.DetectTimeout(),
	}.withDefaults()
}

func (o DetectOptions) withDefaults() DetectOptions {
	d := DefaultDetectOptions()
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Detect polls p.Available until it reports true. It gives up with
// ErrWalletNotFound after MaxAttempts polls or once Timeout has elapsed,
// whichever comes first. Cancelling ctx returns ctx's error.
func Detect(ctx context.Context, p Provider, opts DetectOptions) error {
	opts = opts.withDefaults()

	deadline, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if p.Available(deadline) {
			return nil
		}
		if attempt >= opts.MaxAttempts {
			return fmt.Errorf("%w: %s after %d attempts", ErrWalletNotFound, p.Name(), attempt)
		}
		select {
		case <-deadline.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: %s after %s", ErrWalletNotFound, p.Name(), opts.Timeout)
		case <-ticker.C:
		}
	}
}
