package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastConfig keeps the default shape but with millisecond delays so the
// attempt-count cases run instantly.
func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:    maxRetries,
		BackoffFactor: 2.0,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      20 * time.Millisecond,
		Jitter:        time.Millisecond,
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d, want 4", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 250*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 250ms", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 15*time.Second {
		t.Errorf("MaxDelay = %v, want 15s", cfg.MaxDelay)
	}
	if cfg.BackoffFactor != 2.0 {
		t.Errorf("BackoffFactor = %v, want 2.0", cfg.BackoffFactor)
	}
}

func TestRetrier_Do(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failFirst    int
		wantAttempts int
		wantErr      bool
	}{
		{name: "first try succeeds", maxRetries: 4, failFirst: 0, wantAttempts: 1},
		{name: "succeeds after two failures", maxRetries: 4, failFirst: 2, wantAttempts: 3},
		{name: "succeeds on the last retry", maxRetries: 2, failFirst: 2, wantAttempts: 3},
		{name: "budget exhausted", maxRetries: 2, failFirst: 10, wantAttempts: 3, wantErr: true},
		{name: "no retries allowed", maxRetries: 0, failFirst: 1, wantAttempts: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := NewRetrier(fastConfig(tt.maxRetries)).Do(context.Background(), func() error {
				attempts++
				if attempts <= tt.failFirst {
					return errors.New("transient")
				}
				return nil
			})

			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
		})
	}
}

func TestRetrier_ReturnsLastError(t *testing.T) {
	lastErr := errors.New("still broken")

	err := NewRetrier(fastConfig(1)).Do(context.Background(), func() error {
		return lastErr
	})
	if !errors.Is(err, lastErr) {
		t.Errorf("err = %v, want %v", err, lastErr)
	}
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := NewRetrier(fastConfig(4)).Do(ctx, func() error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retries after cancel)", attempts)
	}
}

// Delays grow by the backoff factor: two retries with a 20ms initial
// delay must wait at least 20+40ms in total.
func TestRetrier_BackoffGrows(t *testing.T) {
	cfg := &Config{
		MaxRetries:    2,
		BackoffFactor: 2.0,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      time.Second,
		Jitter:        time.Millisecond,
	}

	start := time.Now()
	_ = NewRetrier(cfg).Do(context.Background(), func() error {
		return errors.New("transient")
	})
	elapsed := time.Since(start)

	if elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 60ms of backoff", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("elapsed = %v, backoff far beyond the configured delays", elapsed)
	}
}
