package usecase

import (
	"context"
	"sync"

	"coursesync/internal/domain/model"
	"coursesync/internal/domain/ports/adapter"
)

// fakeCompleter returns replies in order, repeating the last one.
type fakeCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []adapter.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req adapter.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	i := len(f.requests) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}

func (f *fakeCompleter) last() adapter.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return adapter.CompletionRequest{}
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// memStateRepo keeps the state in memory and counts saves.
type memStateRepo struct {
	mu      sync.Mutex
	state   *model.State
	saves   int
	saveErr error
}

func (m *memStateRepo) Load(context.Context) (*model.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return model.NewState(testSettings()), nil
	}
	return m.state.Clone(), nil
}

func (m *memStateRepo) Save(_ context.Context, s *model.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = s.Clone()
	return nil
}

func (m *memStateRepo) snapshot() *model.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	return m.state.Clone()
}

// fakeScraper returns fixed content per URL.
type fakeScraper struct {
	pages map[string]string
	err   error
	hits  []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (string, error) {
	f.hits = append(f.hits, url)
	if f.err != nil {
		return "", f.err
	}
	return f.pages[url], nil
}

func testSettings() model.Settings {
	return model.Settings{HoursPerDay: 4, RiskThreshold: 20, NotificationLeadDays: 3, SemesterStart: "2025-09-01"}
}
