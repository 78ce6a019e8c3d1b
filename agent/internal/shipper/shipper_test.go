package shipper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sysinv/sysinv/agent/internal/clock"
	"github.com/sysinv/sysinv/agent/internal/config"
	"github.com/sysinv/sysinv/agent/internal/probe"
	"github.com/sysinv/sysinv/agent/internal/uploader"
)

// mockSender fails the first failN calls, then succeeds.
type mockSender struct {
	mu    sync.Mutex
	calls int
	failN int
	err   error
}

func (m *mockSender) Send(_ context.Context, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failN < 0 || m.calls <= m.failN {
		if m.err != nil {
			return m.err
		}
		return &uploader.DeliveryError{StatusCode: 503, Message: "unavailable"}
	}
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockProber answers from a fixed value.
type mockProber struct {
	up    bool
	calls int
}

func (m *mockProber) Probe(context.Context) bool { m.calls++; return m.up }

func (m *mockProber) Unreachable() error { return &probe.ConnectivityError{Host: "inv.example.com"} }

// recordWaits replaces the wait primitive and records every requested delay.
func recordWaits(s *Shipper) *[]time.Duration {
	var waits []time.Duration
	s.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return &waits
}

func TestShip_AlwaysFailingExhausts(t *testing.T) {
	for n := 1; n <= 6; n++ {
		sender := &mockSender{failN: -1}
		s := New(sender, Options{})
		waits := recordWaits(s)

		attempts, err := s.Ship(context.Background(), "payload", Policy{MaxAttempts: n, Delay: time.Second})

		var ee *ExhaustedError
		if !errors.As(err, &ee) {
			t.Fatalf("n=%d: expected *ExhaustedError, got %v", n, err)
		}
		if attempts != n || ee.Attempts != n || sender.count() != n {
			t.Errorf("n=%d: attempts=%d ee.Attempts=%d sends=%d", n, attempts, ee.Attempts, sender.count())
		}
		if len(*waits) != n-1 {
			t.Errorf("n=%d: waits=%d, want %d", n, len(*waits), n-1)
		}
		var de *uploader.DeliveryError
		if !errors.As(err, &de) || de.StatusCode != 503 {
			t.Errorf("n=%d: last cause not preserved: %v", n, err)
		}
	}
}

func TestShip_SucceedsAfterKFailures(t *testing.T) {
	const n = 5
	for k := 0; k < n; k++ {
		sender := &mockSender{failN: k}
		s := New(sender, Options{})
		waits := recordWaits(s)

		attempts, err := s.Ship(context.Background(), "payload", Policy{MaxAttempts: n, Delay: 3 * time.Second})
		if err != nil {
			t.Fatalf("k=%d: Ship: %v", k, err)
		}
		if attempts != k+1 || sender.count() != k+1 {
			t.Errorf("k=%d: attempts=%d sends=%d, want %d", k, attempts, sender.count(), k+1)
		}
		if len(*waits) != k {
			t.Errorf("k=%d: waits=%d, want %d", k, len(*waits), k)
		}
		for _, d := range *waits {
			if d != 3*time.Second {
				t.Errorf("k=%d: delay %s is not the fixed interval", k, d)
			}
		}
	}
}

func TestShip_UnreachableSkipsSend(t *testing.T) {
	sender := &mockSender{}
	prober := &mockProber{up: false}
	var seen []Attempt
	s := New(sender, Options{Prober: prober, OnAttempt: func(a Attempt) { seen = append(seen, a) }})
	recordWaits(s)

	attempts, err := s.Ship(context.Background(), "payload", Policy{MaxAttempts: 4, Delay: 30 * time.Second})

	var ee *ExhaustedError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExhaustedError, got %v", err)
	}
	if sender.count() != 0 {
		t.Errorf("sender invoked %d times while unreachable", sender.count())
	}
	if attempts != 4 || prober.calls != 4 {
		t.Errorf("attempts=%d probes=%d, want 4", attempts, prober.calls)
	}
	var ce *probe.ConnectivityError
	if !errors.As(err, &ce) {
		t.Errorf("last cause should be *ConnectivityError, got %v", ee.LastCause)
	}
	if len(seen) != 4 || !seen[3].Skipped {
		t.Errorf("observer saw %+v", seen)
	}
}

func TestShip_ReachableSends(t *testing.T) {
	sender := &mockSender{}
	s := New(sender, Options{Prober: &mockProber{up: true}})
	recordWaits(s)

	if _, err := s.Ship(context.Background(), "payload", TransientPolicy()); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if sender.count() != 1 {
		t.Errorf("sends=%d, want 1", sender.count())
	}
}

func TestShip_SingleAttemptPolicy(t *testing.T) {
	sender := &mockSender{failN: -1, err: errors.New("boom")}
	s := New(sender, Options{})
	waits := recordWaits(s)

	_, err := s.Ship(context.Background(), "payload", Policy{MaxAttempts: 1})
	if err == nil || len(*waits) != 0 || sender.count() != 1 {
		t.Fatalf("err=%v waits=%d sends=%d", err, len(*waits), sender.count())
	}
}

func TestShip_InvalidPolicy(t *testing.T) {
	sender := &mockSender{}
	s := New(sender, Options{})
	for _, p := range []Policy{{MaxAttempts: 0}, {MaxAttempts: 2, Delay: -time.Second}} {
		if _, err := s.Ship(context.Background(), "payload", p); err == nil {
			t.Errorf("policy %+v accepted", p)
		}
	}
	if sender.count() != 0 {
		t.Errorf("sender invoked for invalid policy")
	}
}

func TestShip_ZeroDelayYields(t *testing.T) {
	sender := &mockSender{failN: 2}
	s := New(sender, Options{Clock: clock.Fake(time.Unix(0, 0))})

	attempts, err := s.Ship(context.Background(), "payload", Policy{MaxAttempts: 3, Delay: 0})
	if err != nil || attempts != 3 {
		t.Fatalf("attempts=%d err=%v", attempts, err)
	}
}

func TestShip_CancelDuringWait(t *testing.T) {
	sender := &mockSender{failN: -1}
	// The fake clock is never advanced, so only cancellation can end the wait.
	s := New(sender, Options{Clock: clock.Fake(time.Unix(0, 0))})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Ship(ctx, "payload", Policy{MaxAttempts: 3, Delay: time.Hour})
		done <- err
	}()

	// Wait for the first attempt before cancelling.
	deadline := time.Now().Add(2 * time.Second)
	for sender.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled cause, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Ship did not return after cancel")
	}
	if sender.count() != 1 {
		t.Errorf("sends=%d, want 1", sender.count())
	}
}

func TestShip_FakeClockDelay(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	sender := &mockSender{failN: 1}
	s := New(sender, Options{Clock: clk})

	done := make(chan int, 1)
	go func() {
		n, _ := s.Ship(context.Background(), "payload", Policy{MaxAttempts: 2, Delay: 3 * time.Second})
		done <- n
	}()

	deadline := time.Now().Add(2 * time.Second)
	for clk.PendingCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	clk.Advance(2 * time.Second)
	if sender.count() != 1 {
		t.Fatalf("retried before the delay elapsed")
	}
	clk.Advance(time.Second)

	select {
	case n := <-done:
		if n != 2 {
			t.Errorf("attempts=%d, want 2", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Ship did not resume after the delay")
	}
}

func TestPolicyFor(t *testing.T) {
	d := 250 * time.Millisecond
	tests := []struct {
		name string
		in   config.RetryConfig
		want Policy
	}{
		{"default", config.RetryConfig{}, TransientPolicy()},
		{"offline", config.RetryConfig{Profile: config.ProfileOffline}, OfflinePolicy()},
		{"overrides", config.RetryConfig{Profile: config.ProfileTransient, MaxAttempts: 2, Delay: &d}, Policy{MaxAttempts: 2, Delay: d}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PolicyFor(tc.in)
			if err != nil {
				t.Fatalf("PolicyFor: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
	if _, err := PolicyFor(config.RetryConfig{Profile: "aggressive"}); err == nil {
		t.Error("unknown profile accepted")
	}
}

func TestExhaustedError_Unwrap(t *testing.T) {
	cause := &uploader.DeliveryError{StatusCode: 401, Message: "bad key"}
	err := &ExhaustedError{Attempts: 5, LastCause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the last cause")
	}
	if !isPermanent(err) {
		t.Error("permanent flag should propagate through ExhaustedError")
	}
}
