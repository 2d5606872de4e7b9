package backoff_test

import (
	"testing"
	"time"

	"github.com/certvine/certflow/backoff"
)

func TestConstant(t *testing.T) {
	c := backoff.NewConstant(2 * time.Second)
	for attempt := 1; attempt <= 5; attempt++ {
		if got := c.Delay(attempt); got != 2*time.Second {
			t.Errorf("attempt %d: expected 2s, got %v", attempt, got)
		}
	}
}

func TestExponential(t *testing.T) {
	e := backoff.NewExponential(1*time.Second, 10*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{6, 10 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestExponentialNoCap(t *testing.T) {
	e := backoff.NewExponential(1*time.Second, 0)
	if got := e.Delay(6); got != 32*time.Second {
		t.Errorf("expected 32s without cap, got %v", got)
	}
}

func TestExponentialWithJitter(t *testing.T) {
	e := backoff.NewExponentialWithJitter(1*time.Second, 8*time.Second)

	for attempt := 1; attempt <= 6; attempt++ {
		ceiling := time.Duration(1<<uint(attempt-1)) * time.Second
		if ceiling > 8*time.Second {
			ceiling = 8 * time.Second
		}
		for i := 0; i < 20; i++ {
			got := e.Delay(attempt)
			if got < 0 || got > ceiling {
				t.Fatalf("attempt %d: delay %v outside [0, %v]", attempt, got, ceiling)
			}
		}
	}
}

func TestDefaultStrategy(t *testing.T) {
	s := backoff.DefaultStrategy()
	if got := s.Delay(1); got != 500*time.Millisecond {
		t.Errorf("expected 500ms first retry delay, got %v", got)
	}
	if got := s.Delay(2); got != 1*time.Second {
		t.Errorf("expected doubling to 1s, got %v", got)
	}
	if got := s.Delay(20); got != 30*time.Second {
		t.Errorf("expected 30s cap, got %v", got)
	}
}
