package capture

import (
	"testing"
	"time"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 3,
		SettleDelay: 100 * time.Millisecond,
		MaxDelay:    250 * time.Millisecond,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond}, // clamped to attempt 1
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 250 * time.Millisecond}, // capped at MaxDelay
		{10, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_Normalize(t *testing.T) {
	p := RetryPolicy{}.normalize()
	def := DefaultRetryPolicy()
	if p != def {
		t.Errorf("normalized zero policy = %+v, want %+v", p, def)
	}

	custom := RetryPolicy{MaxAttempts: 5, SettleDelay: time.Second, MaxDelay: 3 * time.Second}
	if got := custom.normalize(); got != custom {
		t.Errorf("normalize changed a complete policy: %+v", got)
	}
}
