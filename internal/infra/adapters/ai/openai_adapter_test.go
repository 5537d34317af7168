package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"coursesync/internal/domain"
	"coursesync/internal/domain/ports/adapter"
	ai "coursesync/internal/infra/adapters/ai"
	"coursesync/internal/infra/logging"
)

// scripted replies with a status per call; the last entry repeats.
type script struct {
	mu      sync.Mutex
	calls   int
	steps   []func(w http.ResponseWriter)
	lastReq map[string]any
	auth    string
}

func (s *script) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.auth = r.Header.Get("Authorization")
	_ = json.NewDecoder(r.Body).Decode(&s.lastReq)
	s.mu.Unlock()
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.steps[i](w)
}

func (s *script) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func ok(content string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	}
}

func status(code int, headers ...string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		for i := 0; i+1 < len(headers); i += 2 {
			w.Header().Set(headers[i], headers[i+1])
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newAdapter(t *testing.T, url, key string, rec *sleepRecorder, jitter time.Duration) *ai.OpenAIAdapter {
	t.Helper()
	return ai.NewOpenAIAdapter(ai.OpenAIConfig{
		Provider: "groq",
		APIKey:   key,
		BaseURL:  url,
		Model:    "test-model",
		Timeout:  2 * time.Second,
		Retry:    ai.DefaultRetryPolicy(),
	}, logging.Nop(),
		ai.WithSleeper(rec.sleep),
		ai.WithJitter(func(time.Duration) time.Duration { return jitter }),
	)
}

func req() adapter.CompletionRequest {
	return adapter.CompletionRequest{
		Task:              adapter.TaskSyllabusParse,
		SystemInstruction: "sys",
		UserContent:       "user",
		Temperature:       0.3,
	}
}

func TestComplete_SuccessSendsContract(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){ok(`{"a":1}`)}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	rec := &sleepRecorder{}
	got, err := newAdapter(t, srv.URL, "k-123", rec, 0).Complete(context.Background(), req())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a":1}` {
		t.Fatalf("content = %q", got)
	}
	if s.auth != "Bearer k-123" {
		t.Errorf("auth header = %q", s.auth)
	}
	want := map[string]any{
		"model": "test-model",
		"messages": []any{
			map[string]any{"role": "system", "content": "sys"},
			map[string]any{"role": "user", "content": "user"},
		},
		"temperature": 0.3,
		"max_tokens":  float64(2000),
	}
	if diff := cmp.Diff(want, s.lastReq); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
	if len(rec.waits) != 0 {
		t.Errorf("no waits expected, got %v", rec.waits)
	}
}

func TestComplete_MissingKeyFailsWithoutNetwork(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newAdapter(t, srv.URL, "", rec, 0).Complete(context.Background(), req())
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("expected zero network calls, got %d", hits)
	}
	if len(rec.waits) != 0 {
		t.Errorf("expected zero retries, got %v", rec.waits)
	}
}

func TestComplete_RetryClassification(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		code      int
		wantCalls int
	}{
		{"429 retried", http.StatusTooManyRequests, 2},
		{"500 retried", http.StatusInternalServerError, 2},
		{"502 retried", http.StatusBadGateway, 2},
		{"503 retried", http.StatusServiceUnavailable, 2},
		{"599 retried", 599, 2},
		{"400 not retried", http.StatusBadRequest, 1},
		{"401 not retried", http.StatusUnauthorized, 1},
		{"404 not retried", http.StatusNotFound, 1},
		{"422 not retried", http.StatusUnprocessableEntity, 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := &script{steps: []func(http.ResponseWriter){status(tc.code), ok("done")}}
			srv := httptest.NewServer(http.HandlerFunc(s.handler))
			defer srv.Close()

			got, err := newAdapter(t, srv.URL, "k", &sleepRecorder{}, 0).Complete(context.Background(), req())
			if s.count() != tc.wantCalls {
				t.Fatalf("calls = %d, want %d", s.count(), tc.wantCalls)
			}
			if tc.wantCalls == 2 {
				if err != nil || got != "done" {
					t.Fatalf("want success after retry, got %q, %v", got, err)
				}
				return
			}
			var se *adapter.StatusError
			if !errors.As(err, &se) || se.Code != tc.code {
				t.Fatalf("want StatusError %d, got %v", tc.code, err)
			}
			if errors.Is(err, domain.ErrServiceUnavailable) {
				t.Errorf("client errors must not be reported as unavailable")
			}
		})
	}
}

func TestComplete_ExponentialBackoffWithJitter(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){status(500), status(502), status(503), ok("fine")}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	rec := &sleepRecorder{}
	got, err := newAdapter(t, srv.URL, "k", rec, 100*time.Millisecond).Complete(context.Background(), req())
	if err != nil || got != "fine" {
		t.Fatalf("got %q, %v", got, err)
	}
	want := []time.Duration{
		1*time.Second + 100*time.Millisecond,
		2*time.Second + 100*time.Millisecond,
		4*time.Second + 100*time.Millisecond,
	}
	if diff := cmp.Diff(want, rec.waits); diff != "" {
		t.Errorf("waits mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_RetryAfterHonoredOnlyFor429(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){
		status(429, "Retry-After", "7"),
		status(429, "Retry-After", "soon"),
		status(503, "Retry-After", "30"),
		ok("ok"),
	}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	rec := &sleepRecorder{}
	if _, err := newAdapter(t, srv.URL, "k", rec, 0).Complete(context.Background(), req()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{
		7 * time.Second, // numeric Retry-After replaces the exponential wait
		2 * time.Second, // non-numeric falls back to base * 2^(2-1)
		4 * time.Second, // 5xx ignores Retry-After
	}
	if diff := cmp.Diff(want, rec.waits); diff != "" {
		t.Errorf("waits mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_ExhaustedAfterFiveAttempts(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){status(429)}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newAdapter(t, srv.URL, "k", rec, 0).Complete(context.Background(), req())
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("want ErrServiceUnavailable, got %v", err)
	}
	var se *adapter.StatusError
	if !errors.As(err, &se) || se.Code != 429 {
		t.Errorf("last status should be preserved, got %v", err)
	}
	if s.count() != 5 {
		t.Errorf("calls = %d, want 5", s.count())
	}
	if len(rec.waits) != 4 {
		t.Errorf("waits = %v, want 4 (no wait after the final attempt)", rec.waits)
	}
}

func TestComplete_NetworkErrorPropagatesOnFinalAttempt(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from now on

	rec := &sleepRecorder{}
	_, err := newAdapter(t, url, "k", rec, 0).Complete(context.Background(), req())
	var ne *adapter.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("want NetworkError, got %v", err)
	}
	if ne.Attempt != 5 {
		t.Errorf("attempt = %d, want 5", ne.Attempt)
	}
	if errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("network failures propagate as-is, not as unavailable")
	}
	if len(rec.waits) != 4 {
		t.Errorf("waits = %v, want 4", rec.waits)
	}
}

func TestComplete_PerAttemptTimeoutIsRetried(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-r.Context().Done()
			return
		}
		ok("late but fine")(w)
	}))
	defer srv.Close()

	a := ai.NewOpenAIAdapter(ai.OpenAIConfig{
		APIKey:  "k",
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	}, logging.Nop(), ai.WithSleeper((&sleepRecorder{}).sleep))

	got, err := a.Complete(context.Background(), req())
	if err != nil || got != "late but fine" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestComplete_CancelledContextInterruptsBackoff(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){status(503)}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := ai.NewOpenAIAdapter(ai.OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, logging.Nop(),
		ai.WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}))

	_, err := a.Complete(ctx, req())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if s.count() != 1 {
		t.Errorf("calls = %d, want 1", s.count())
	}
}

func TestComplete_NoChoicesIsNotRetried(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	_, err := newAdapter(t, srv.URL, "k", &sleepRecorder{}, 0).Complete(context.Background(), req())
	if err == nil {
		t.Fatal("expected error")
	}
	if s.count() != 1 {
		t.Errorf("calls = %d, want 1", s.count())
	}
}

func TestComplete_ConcurrentCallsDoNotShareState(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){ok("x")}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	a := ai.NewLimitedAI(newAdapter(t, srv.URL, "k", &sleepRecorder{}, 0), 2)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Complete(context.Background(), req()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if s.count() != 8 {
		t.Errorf("calls = %d, want 8", s.count())
	}
}

func TestComplete_RetryAfterBeyondDeadlineIsUnavailable(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){status(http.StatusTooManyRequests, "Retry-After", "600")}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	a := ai.NewOpenAIAdapter(ai.OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Retry: ai.DefaultRetryPolicy()}, logging.Nop())

	start := time.Now()
	_, err := a.Complete(ctx, req())
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("want ErrServiceUnavailable, got %v", err)
	}
	var se *adapter.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Errorf("last status not kept: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("call should fail fast, took %v", time.Since(start))
	}
	if s.count() != 1 {
		t.Errorf("calls = %d, want 1", s.count())
	}
}

func TestComplete_DeadlineDuringBackoffIsUnavailable(t *testing.T) {
	t.Parallel()
	s := &script{steps: []func(http.ResponseWriter){status(503)}}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := ai.NewOpenAIAdapter(ai.OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, logging.Nop(),
		ai.WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}))

	_, err := a.Complete(ctx, req())
	if !errors.Is(err, domain.ErrServiceUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("want ErrServiceUnavailable and context.Canceled, got %v", err)
	}
}
