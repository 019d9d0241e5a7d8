package llm

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	llmclient "snapshotter/internal/llm/client"
)

func TestChainOrderAndDelegation(t *testing.T) {
	base := llmclient.NewScripted([]string{`{"ok": true}`}, nil)

	wrapped := Chain(base,
		WithLogging(zap.NewNop()),
		RateLimit(100, 1),
	)
	if wrapped.Name() != "scripted" {
		t.Fatalf("Name = %q, middlewares must delegate", wrapped.Name())
	}

	raw, err := wrapped.GenerateJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatal(err)
	}
	if raw != `{"ok": true}` {
		t.Fatalf("raw = %q", raw)
	}
	if base.Calls() != 1 {
		t.Fatalf("calls = %d", base.Calls())
	}
	if err := wrapped.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRateLimitBlocksThenAdmits(t *testing.T) {
	base := llmclient.NewScripted([]string{"{}"}, nil)
	wrapped := RateLimit(50, 1)(base)

	// Burst of one: the first call is immediate, the second waits for a
	// refill (~20ms at 50 rps).
	start := time.Now()
	if _, err := wrapped.GenerateJSON(context.Background(), "s", "u"); err != nil {
		t.Fatal(err)
	}
	if _, err := wrapped.GenerateJSON(context.Background(), "s", "u"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("second call admitted after %v, expected a refill wait", elapsed)
	}
}

func TestRateLimitHonorsContextCancel(t *testing.T) {
	base := llmclient.NewScripted([]string{"{}"}, nil)
	wrapped := RateLimit(0.001, 1)(base)

	// Drain the single burst token.
	if _, err := wrapped.GenerateJSON(context.Background(), "s", "u"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := wrapped.GenerateJSON(ctx, "s", "u"); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if base.Calls() != 1 {
		t.Fatalf("calls = %d, canceled call must not reach the client", base.Calls())
	}
}

func TestRateLimitCloseStopsRefill(t *testing.T) {
	base := llmclient.NewScripted([]string{"{}"}, nil)
	wrapped := RateLimit(0.001, 1)(base)

	// Drain the single burst token, then close. With the refill
	// goroutine stopped, a subsequent acquire fails immediately
	// instead of blocking until the ~17-minute refill.
	if _, err := wrapped.GenerateJSON(context.Background(), "s", "u"); err != nil {
		t.Fatal(err)
	}
	if err := wrapped.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := wrapped.GenerateJSON(context.Background(), "s", "u"); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled after Close", err)
	}
	if base.Calls() != 1 {
		t.Fatalf("calls = %d, post-Close call must not reach the client", base.Calls())
	}

	// Closing twice must not panic.
	if err := wrapped.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRateLimitFromEnv(t *testing.T) {
	t.Setenv("SNAPSHOTTER_LLM_RPS", "50")
	t.Setenv("SNAPSHOTTER_LLM_BURST", "1")

	base := llmclient.NewScripted([]string{"{}"}, nil)
	wrapped := RateLimitFromEnv("SNAPSHOTTER_LLM", "GEMINI")(base)
	defer func() { _ = wrapped.Close() }()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := wrapped.GenerateJSON(context.Background(), "s", "u"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("second call admitted after %v, expected a refill wait", elapsed)
	}
}

func TestRateLimitFromEnvUnsetIsNoop(t *testing.T) {
	base := llmclient.NewScripted([]string{"{}"}, nil)
	wrapped := RateLimitFromEnv("SNAPSHOTTER_UNSET_PREFIX")(base)

	for i := 0; i < 5; i++ {
		if _, err := wrapped.GenerateJSON(context.Background(), "s", "u"); err != nil {
			t.Fatal(err)
		}
	}
	if base.Calls() != 5 {
		t.Fatalf("calls = %d", base.Calls())
	}
	if err := wrapped.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	base := llmclient.NewScripted([]string{"{}"}, nil)
	wrapped := RateLimit(0, 0)(base)

	for i := 0; i < 5; i++ {
		if _, err := wrapped.GenerateJSON(context.Background(), "s", "u"); err != nil {
			t.Fatal(err)
		}
	}
	if base.Calls() != 5 {
		t.Fatalf("calls = %d", base.Calls())
	}
}
