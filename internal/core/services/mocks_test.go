package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// mockLLMClient answers Complete calls through a scripted handler.
type mockLLMClient struct {
	mu       sync.Mutex
	provider domain.AIProvider
	model    string
	handler  func(call int, req driven.CompletionRequest) (*driven.Completion, error)
	calls    int
	prompts  []string
}

func newMockLLMClient(handler func(call int, req driven.CompletionRequest) (*driven.Completion, error)) *mockLLMClient {
	return &mockLLMClient{
		provider: domain.AIProviderOpenAI,
		model:    "gpt-4o-mini",
		handler:  handler,
	}
}

// replyWith returns a handler that always answers text.
func replyWith(text string) func(int, driven.CompletionRequest) (*driven.Completion, error) {
	return func(int, driven.CompletionRequest) (*driven.Completion, error) {
		return &driven.Completion{Text: text, InputTokens: 100, OutputTokens: 50, FinishReason: "stop"}, nil
	}
}

func (m *mockLLMClient) Complete(_ context.Context, req driven.CompletionRequest) (*driven.Completion, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.prompts = append(m.prompts, req.Prompt)
	m.mu.Unlock()
	return m.handler(call, req)
}

func (m *mockLLMClient) Provider() domain.AIProvider { return m.provider }

func (m *mockLLMClient) ModelName() string { return m.model }

func (m *mockLLMClient) Ping(context.Context) error { return nil }

func (m *mockLLMClient) Close() error { return nil }

func (m *mockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// recordingSleeper records backoff delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

// staticPrompts serves one template for every question type.
type staticPrompts struct {
	user string
	err  error
}

func (p *staticPrompts) Resolve(qtype domain.QuestionType, version string) (driven.PromptTemplate, error) {
	if p.err != nil {
		return driven.PromptTemplate{}, p.err
	}
	if version == "" {
		version = "v1.0"
	}
	user := p.user
	if user == "" {
		user = "{{.Header}}\n{{.Sections}}\n{{.Footer}}"
	}
	return driven.PromptTemplate{QuestionType: qtype, Version: version, System: "system", User: user}, nil
}

func (p *staticPrompts) Versions(domain.QuestionType) ([]string, error) { return []string{"v1.0"}, nil }

func (p *staticPrompts) Reload() {}

// makeSections returns n sections of a document with IDs 1..n.
func makeSections(docID string, n int) []domain.Section {
	out := make([]domain.Section, n)
	for i := range out {
		out[i] = domain.Section{
			ID:         i + 1,
			DocumentID: docID,
			Title:      "Artículo " + strconv.Itoa(i+1),
			Text:       "El plazo para interponer el recurso es de diez días hábiles.",
			Page:       i + 1,
		}
	}
	return out
}
