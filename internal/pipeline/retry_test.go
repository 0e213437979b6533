package pipeline_test

import (
	"testing"
	"time"

	"github.com/viralforge/analysis-service/internal/pipeline"
)

func TestRetryPolicy_DelayGrowsLinearly(t *testing.T) {
	t.Parallel()

	p := pipeline.RetryPolicy{BaseDelay: 15 * time.Second, DelayCeiling: 10 * time.Minute, MaxAttempts: 5}
	if d := p.Delay(1); d != 15*time.Second {
		t.Fatalf("expected 15s after first attempt, got %s", d)
	}
	if d := p.Delay(2); d != 30*time.Second {
		t.Fatalf("expected 30s after second attempt, got %s", d)
	}
	if d := p.Delay(4); d != 60*time.Second {
		t.Fatalf("expected 60s after fourth attempt, got %s", d)
	}
}

func TestRetryPolicy_DelayIsCapped(t *testing.T) {
	t.Parallel()

	p := pipeline.RetryPolicy{BaseDelay: 15 * time.Second, DelayCeiling: 45 * time.Second, MaxAttempts: 10}
	if d := p.Delay(4); d != 45*time.Second {
		t.Fatalf("expected ceiling, got %s", d)
	}
	if d := p.Delay(100); d != 45*time.Second {
		t.Fatalf("expected ceiling for large attempts, got %s", d)
	}
}

func TestRetryPolicy_DeadAfterExactlyMaxAttempts(t *testing.T) {
	t.Parallel()

	p := pipeline.RetryPolicy{BaseDelay: time.Second, DelayCeiling: time.Minute, MaxAttempts: 5}
	for attempt := 1; attempt < 5; attempt++ {
		decision := p.Decide(attempt)
		if decision.Dead {
			t.Fatalf("expected retry after attempt %d", attempt)
		}
		if decision.Delay != time.Duration(attempt)*time.Second {
			t.Fatalf("expected %ds delay after attempt %d, got %s", attempt, attempt, decision.Delay)
		}
	}
	if decision := p.Decide(5); !decision.Dead {
		t.Fatalf("expected dead after fifth attempt")
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	t.Parallel()

	p := pipeline.DefaultRetryPolicy()
	if p.BaseDelay != 15*time.Second || p.DelayCeiling != 10*time.Minute || p.MaxAttempts != 5 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	var zero pipeline.RetryPolicy
	if decision := zero.Decide(1); decision.Dead || decision.Delay != 15*time.Second {
		t.Fatalf("expected zero policy to normalize to defaults, got %+v", decision)
	}
}
