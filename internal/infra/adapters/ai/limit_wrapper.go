package ai

import (
	"context"

	"coursesync/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Completer = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.Completer
	sem   chan struct{}
}

// NewLimitedAI caps concurrent outbound completions. Waiting for a slot
// respects ctx so a cancelled request does not queue forever.
func NewLimitedAI(inner adapter.Completer, maxConcurrent int) adapter.Completer {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Complete(ctx context.Context, req adapter.CompletionRequest) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, req)
}
