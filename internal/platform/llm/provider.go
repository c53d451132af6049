package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/curriculum-backend/internal/observability"
)

// Provider turns a single prompt into raw model text.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder returns one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Named is implemented by providers that can report what they are, for logs and metrics.
type Named interface {
	Name() string
}

type ProviderFunc func(ctx context.Context, prompt string) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type EmbedderFunc func(ctx context.Context, inputs []string) ([][]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return f(ctx, inputs)
}

// Modeled is implemented by embedders that report their model id. Stored vectors are keyed by it.
type Modeled interface {
	Model() string
}

// ModelOf returns v's model id, or NameOf(v) when it has none.
func ModelOf(v any) string {
	if m, ok := v.(Modeled); ok && m.Model() != "" {
		return m.Model()
	}
	return NameOf(v)
}

// ErrTimeout wraps a provider call that ran past its deadline.
var ErrTimeout = errors.New("llm call timed out")

// NameOf returns p's name, or "unknown".
func NameOf(p any) string {
	if n, ok := p.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return "unknown"
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every Complete call on p. A non-positive d returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if p == nil || d <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: d}
}

func (t *timeoutProvider) Name() string { return NameOf(t.next) }

func (t *timeoutProvider) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Complete(callCtx, prompt)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("%w after %s: %v", ErrTimeout, t.timeout, err)
	}
	return out, err
}

type instrumentedProvider struct {
	next Provider
	name string
}

// Instrument records a span and request metrics around each Complete call.
func Instrument(p Provider) Provider {
	if p == nil {
		return nil
	}
	return &instrumentedProvider{next: p, name: NameOf(p)}
}

func (i *instrumentedProvider) Name() string { return i.name }

func (i *instrumentedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "llm.complete",
		attribute.String("llm.provider", i.name),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)
	start := time.Now()
	out, err := i.next.Complete(ctx, prompt)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.Current().ObserveLLMRequest(i.name, "complete", status, time.Since(start), EstimateTokens(prompt), EstimateTokens(out))
	observability.EndSpan(span, err)
	return out, err
}

type instrumentedEmbedder struct {
	next  Embedder
	name  string
	model string
}

// InstrumentEmbedder records a span and request metrics around each Embed call. Name and
// Model pass through so stored vectors stay keyed by the real model.
func InstrumentEmbedder(e Embedder) Embedder {
	if e == nil {
		return nil
	}
	return &instrumentedEmbedder{next: e, name: NameOf(e), model: ModelOf(e)}
}

func (i *instrumentedEmbedder) Name() string  { return i.name }
func (i *instrumentedEmbedder) Model() string { return i.model }

func (i *instrumentedEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	ctx, span := observability.StartSpan(ctx, "llm.embed",
		attribute.String("llm.provider", i.name),
		attribute.Int("llm.inputs", len(inputs)),
	)
	start := time.Now()
	out, err := i.next.Embed(ctx, inputs)
	status := "ok"
	if err != nil {
		status = "error"
	}
	tokens := 0
	for _, in := range inputs {
		tokens += EstimateTokens(in)
	}
	observability.Current().ObserveLLMRequest(i.name, "embed", status, time.Since(start), tokens, 0)
	observability.EndSpan(span, err)
	return out, err
}

// EstimateTokens is a rough chars/4 estimate used only for metrics.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
