// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"sort"
	"strings"

	"coursesync/internal/domain"
	"coursesync/internal/domain/ports/adapter"
)

var _ adapter.Completer = (*MultiAIAdapter)(nil)

// MultiAIAdapter sends every completion to the default provider. When that
// provider has no credentials it falls through to the next configured one,
// so a deployment with only GEMINI_API_KEY still works under provider=groq.
type MultiAIAdapter struct {
	defaultProvider string
	byProvider      map[string]adapter.Completer
	order           []string
}

func NewMultiAIAdapter(defaultProvider string, byProvider map[string]adapter.Completer) *MultiAIAdapter {
	def := strings.ToLower(defaultProvider)
	order := make([]string, 0, len(byProvider))
	if byProvider[def] != nil {
		order = append(order, def)
	}
	rest := make([]string, 0, len(byProvider))
	for name, a := range byProvider {
		if name != def && a != nil {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)
	return &MultiAIAdapter{defaultProvider: def, byProvider: byProvider, order: order}
}

// Providers lists provider names in the order they are tried.
func (m *MultiAIAdapter) Providers() []string {
	return append([]string(nil), m.order...)
}

func (m *MultiAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (string, error) {
	if len(m.order) == 0 {
		return "", domain.ErrNotConfigured
	}
	var err error
	for _, name := range m.order {
		var text string
		text, err = m.byProvider[name].Complete(ctx, req)
		if !errors.Is(err, domain.ErrNotConfigured) {
			return text, err
		}
	}
	return "", err
}
