package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"google.golang.org/genai"

	"coursesync/internal/domain"
	"coursesync/internal/domain/ports/adapter"
)

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"", 0, false},
		{"3", 3 * time.Second, true},
		{" 0 ", 0, true},
		{"1.5", 1500 * time.Millisecond, true},
		{"-2", 0, false},
		{"NaN", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
		{"999999", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseRetryAfter(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseRetryAfter(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRetryPolicy_BackoffDoubles(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestRetryPolicy_NormalizedFillsDefaults(t *testing.T) {
	p := RetryPolicy{MaxJitter: -1}.normalized()
	if p.MaxAttempts != 5 || p.BaseDelay != time.Second || p.MaxJitter != 0 {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestUniformJitterStaysInRange(t *testing.T) {
	if uniformJitter(0) != 0 {
		t.Fatal("zero limit must give zero jitter")
	}
	for i := 0; i < 200; i++ {
		if j := uniformJitter(500 * time.Millisecond); j < 0 || j >= 500*time.Millisecond {
			t.Fatalf("jitter %v out of range", j)
		}
	}
}

func TestRetrier_UnknownErrorIsTerminal(t *testing.T) {
	r := newRetrier("test", DefaultRetryPolicy(), nil)
	r.sleep = func(context.Context, time.Duration) error {
		t.Fatal("should not sleep")
		return nil
	}
	calls := 0
	boom := errors.New("boom")
	_, err := r.do(context.Background(), func(context.Context, int) attemptResult {
		calls++
		return attemptResult{err: boom}
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestClassifyGeminiErr(t *testing.T) {
	t.Run("api error value", func(t *testing.T) {
		err := classifyGeminiErr(1, fmt.Errorf("wrapped: %w", genai.APIError{Code: 429, Message: "quota"}))
		var se *adapter.StatusError
		if !errors.As(err, &se) || se.Code != 429 || !se.Retryable() {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("client error", func(t *testing.T) {
		err := classifyGeminiErr(1, genai.APIError{Code: 400, Message: "bad"})
		var se *adapter.StatusError
		if !errors.As(err, &se) || se.Retryable() {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("deadline", func(t *testing.T) {
		err := classifyGeminiErr(3, context.DeadlineExceeded)
		var ne *adapter.NetworkError
		if !errors.As(err, &ne) || ne.Attempt != 3 {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("net error", func(t *testing.T) {
		err := classifyGeminiErr(2, &net.OpError{Op: "dial", Err: errors.New("refused")})
		var ne *adapter.NetworkError
		if !errors.As(err, &ne) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestGeminiAdapter_MissingKey(t *testing.T) {
	g := NewGeminiAdapter(GeminiConfig{}, nil)
	_, err := g.Complete(context.Background(), adapter.CompletionRequest{Task: adapter.TaskAssistantAction})
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
	if g.client != nil {
		t.Error("client must not be created without a key")
	}
}

func TestGeminiAdapter_InitFailureIsNotCached(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	g := NewGeminiAdapter(GeminiConfig{BaseURL: "http://127.0.0.1:1/"}, nil)

	if _, err := g.sdk(context.Background()); err == nil {
		t.Fatal("init without a key should fail")
	}
	if g.client != nil {
		t.Fatal("failed init left a client behind")
	}

	g.cfg.APIKey = "k"
	c, err := g.sdk(context.Background())
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	again, err := g.sdk(context.Background())
	if err != nil || again != c {
		t.Fatalf("client not reused: %v", err)
	}
}
