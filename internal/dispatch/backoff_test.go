package dispatch

import (
	"testing"
	"time"
)

func TestBackoffMonotoneWithoutJitter(t *testing.T) {
	p := BackoffPolicy{Base: 100 * time.Millisecond, Max: 10 * time.Second}
	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v < Delay(%d) = %v", attempt, d, attempt-1, prev)
		}
		prev = d
	}
}

func TestBackoffExponentialGrowth(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Max: time.Hour}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffCap(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Max: 8 * time.Second}
	if got := p.Delay(10); got != 8*time.Second {
		t.Errorf("Delay(10) = %v, want cap %v", got, 8*time.Second)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Max: time.Minute, Jitter: 0.25}
	lo := time.Duration(float64(4*time.Second) * 0.75)
	hi := time.Duration(float64(4*time.Second) * 1.25)
	for i := 0; i < 200; i++ {
		d := p.Delay(3)
		if d < lo || d > hi {
			t.Fatalf("Delay(3) = %v outside [%v, %v]", d, lo, hi)
		}
	}
}

func TestBackoffZeroValueUsesDefaults(t *testing.T) {
	var p BackoffPolicy
	if d := p.Delay(1); d != DefaultBackoff.Base {
		t.Errorf("zero-value Delay(1) = %v, want %v", d, DefaultBackoff.Base)
	}
}

func TestBackoffAttemptFloor(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Max: time.Minute}
	if p.Delay(0) != p.Delay(1) {
		t.Error("Delay(0) should behave like Delay(1)")
	}
}
