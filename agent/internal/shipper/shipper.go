package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/sysinv/sysinv/agent/internal/clock"
	"github.com/sysinv/sysinv/agent/internal/config"
)

const (
	transientAttempts = 5
	transientDelay    = 3 * time.Second
	offlineAttempts   = 10
	offlineDelay      = 30 * time.Second
)

// Policy bounds one Ship call. It is copied by value and never mutated.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// TransientPolicy rides out short network or server blips.
func TransientPolicy() Policy {
	return Policy{MaxAttempts: transientAttempts, Delay: transientDelay}
}

// OfflinePolicy suits hosts that spend long stretches without internet.
func OfflinePolicy() Policy {
	return Policy{MaxAttempts: offlineAttempts, Delay: offlineDelay}
}

// Validate reports whether p can drive a Ship call.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("shipper: policy: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("shipper: policy: delay must not be negative, got %s", p.Delay)
	}
	return nil
}

// PolicyFor resolves the retry profile in r and applies its overrides.
func PolicyFor(r config.RetryConfig) (Policy, error) {
	var p Policy
	switch r.Profile {
	case "", config.ProfileTransient:
		p = TransientPolicy()
	case config.ProfileOffline:
		p = OfflinePolicy()
	default:
		return Policy{}, fmt.Errorf("shipper: unknown retry profile %q", r.Profile)
	}
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.Delay != nil {
		p.Delay = *r.Delay
	}
	return p, p.Validate()
}

// ExhaustedError is returned when every attempt of a Ship call failed.
type ExhaustedError struct {
	Attempts  int
	LastCause error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("shipper: gave up after %d attempt(s): %v", e.Attempts, e.LastCause)
}

func (e *ExhaustedError) Unwrap() error { return e.LastCause }

// Sender performs exactly one delivery attempt.
type Sender interface {
	Send(ctx context.Context, payload any) error
}

// Prober gates attempts on server reachability.
type Prober interface {
	Probe(ctx context.Context) bool
	// Unreachable returns the error recorded for a skipped attempt.
	Unreachable() error
}

// Attempt describes the outcome of one attempt. Err is nil on success.
type Attempt struct {
	Number  int
	Skipped bool
	Err     error
}

// Options configures a Shipper. All fields are optional.
type Options struct {
	// Prober, when set, is consulted before every attempt.
	Prober Prober

	// Clock drives the inter-attempt wait. Defaults to clock.Real().
	Clock clock.Clock

	// OnAttempt is called synchronously after every attempt.
	OnAttempt func(Attempt)
}

// Shipper wraps a Sender with bounded retry and connectivity gating.
type Shipper struct {
	sender    Sender
	prober    Prober
	onAttempt func(Attempt)
	wait      waitFunc // injectable for tests
}

// waitFunc suspends for d or until ctx is done.
type waitFunc func(ctx context.Context, d time.Duration) error

// New returns a Shipper delivering through sender.
func New(sender Sender, opts Options) *Shipper {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Shipper{
		sender:    sender,
		prober:    opts.Prober,
		onAttempt: opts.OnAttempt,
		wait:      clockWait(clk),
	}
}

// Ship delivers payload, retrying per policy. It returns the number of
// attempts made and nil on success, or *ExhaustedError once the budget is
// spent. Cancelling ctx during a wait ends the call early with ctx.Err() as
// the last cause.
func (s *Shipper) Ship(ctx context.Context, payload any, policy Policy) (int, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}

	var lastErr error
	for i := 1; i <= policy.MaxAttempts; i++ {
		skipped, err := s.attempt(ctx, payload)
		s.report(Attempt{Number: i, Skipped: skipped, Err: err})
		if err == nil {
			if i > 1 {
				slog.Info("shipper: delivered after retry", "attempts", i)
			}
			return i, nil
		}
		lastErr = err

		if i == policy.MaxAttempts {
			break
		}
		slog.Warn("shipper: attempt failed, will retry",
			"attempt", i,
			"max_attempts", policy.MaxAttempts,
			"skipped", skipped,
			"permanent", isPermanent(err),
			"err", err,
			"retry_in", policy.Delay)

		if err := s.wait(ctx, policy.Delay); err != nil {
			return i, &ExhaustedError{Attempts: i, LastCause: err}
		}
	}

	slog.Error("shipper: retry budget exhausted",
		"attempts", policy.MaxAttempts, "err", lastErr)
	return policy.MaxAttempts, &ExhaustedError{Attempts: policy.MaxAttempts, LastCause: lastErr}
}

// attempt runs one gated send and reports whether it was skipped.
func (s *Shipper) attempt(ctx context.Context, payload any) (bool, error) {
	if s.prober != nil && !s.prober.Probe(ctx) {
		return true, s.prober.Unreachable()
	}
	return false, s.sender.Send(ctx, payload)
}

func (s *Shipper) report(a Attempt) {
	if s.onAttempt != nil {
		s.onAttempt(a)
	}
}

// clockWait waits on clk. A zero delay yields instead of blocking.
func clockWait(clk clock.Clock) waitFunc {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			runtime.Gosched()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(d):
			return nil
		}
	}
}

// permanentError is satisfied by errors that retrying cannot fix.
type permanentError interface {
	Permanent() bool
}

// isPermanent reports whether err says retrying is pointless. Ship still
// spends the full budget; the flag only feeds logging.
func isPermanent(err error) bool {
	var pe permanentError
	return errors.As(err, &pe) && pe.Permanent()
}
