package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWait_PacesRequests(t *testing.T) {
	// 10 rps with burst 1 means each extra call waits ~100ms.
	gate := New(10, 1, zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := gate.Wait(ctx); err != nil {
			t.Fatalf("Wait() failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Errorf("3 calls at 10 rps took %v, expected at least ~200ms", elapsed)
	}
}

func TestCooldown_BlocksGate(t *testing.T) {
	gate := New(1000, 10, zerolog.Nop())

	gate.Cooldown(200 * time.Millisecond)
	if blocked := gate.BlockedFor(); blocked <= 0 {
		t.Fatal("BlockedFor() should be positive after Cooldown")
	}

	start := time.Now()
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to sit out the cooldown", elapsed)
	}
	if blocked := gate.BlockedFor(); blocked > 0 {
		t.Errorf("BlockedFor() = %v after cooldown elapsed, want 0", blocked)
	}
}

func TestCooldown_DefaultDuration(t *testing.T) {
	gate := New(1000, 10, zerolog.Nop())

	gate.Cooldown(0)
	blocked := gate.BlockedFor()
	if blocked < DefaultCooldown-time.Second || blocked > DefaultCooldown {
		t.Errorf("BlockedFor() = %v, want ~%v", blocked, DefaultCooldown)
	}
}

func TestCooldown_NeverShortens(t *testing.T) {
	gate := New(1000, 10, zerolog.Nop())

	gate.Cooldown(10 * time.Second)
	gate.Cooldown(1 * time.Second)

	if blocked := gate.BlockedFor(); blocked < 8*time.Second {
		t.Errorf("BlockedFor() = %v, a shorter cooldown must not shorten an active one", blocked)
	}
}

func TestWait_CancelledDuringCooldown(t *testing.T) {
	gate := New(1000, 10, zerolog.Nop())
	gate.Cooldown(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := gate.Wait(ctx); err == nil {
		t.Error("Wait() should return the context error when cancelled during cooldown")
	}
}
