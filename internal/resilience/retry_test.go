package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sells-group/geoquery/internal/config"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(), func(_ context.Context) error {
		calls++
		return errors.New("no polygon boundary")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for permanent error, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second}, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("timeout"), 504)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancellation, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetry()
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("busy"), 429)
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected retry attempts: %v", attempts)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	got, err := DoVal(context.Background(), fastRetry(), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("bad gateway"), 502)
		}
		return "data/kerala_boundary.geojson", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "data/kerala_boundary.geojson" {
		t.Errorf("unexpected value %q", got)
	}
}

func TestComputeBackoff_Capped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 10}
	if d := computeBackoff(5, cfg); d != 3*time.Second {
		t.Errorf("expected backoff capped at 3s, got %v", d)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{
		MaxAttempts:      5,
		InitialBackoffMs: 100,
		MaxBackoffMs:     2000,
		Multiplier:       3,
		JitterFraction:   0,
	})
	if cfg.MaxAttempts != 5 {
		t.Errorf("max attempts = %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 100*time.Millisecond {
		t.Errorf("initial backoff = %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 2*time.Second {
		t.Errorf("max backoff = %v", cfg.MaxBackoff)
	}
	if cfg.Multiplier != 3 {
		t.Errorf("multiplier = %v", cfg.Multiplier)
	}
	if cfg.JitterFraction != 0 {
		t.Errorf("jitter = %v", cfg.JitterFraction)
	}
}

func TestFromConfig_ZeroKeepsDefaults(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{JitterFraction: -1})
	def := DefaultRetryConfig()
	if cfg.MaxAttempts != def.MaxAttempts || cfg.InitialBackoff != def.InitialBackoff {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.JitterFraction != def.JitterFraction {
		t.Errorf("negative jitter should keep default, got %v", cfg.JitterFraction)
	}
}
