// Package llmtest holds scripted providers for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"
)

// Reply is one scripted answer: either Text or Err.
type Reply struct {
	Text string
	Err  error
}

// Scripted replays Replies in order and records every prompt it receives.
// Once the script runs out, the last reply repeats.
type Scripted struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
	// Fallback, when set, answers prompts once the script is exhausted instead of repeating.
	Fallback func(ctx context.Context, prompt string) (string, error)
}

func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Texts is shorthand for a script of successful replies.
func Texts(texts ...string) *Scripted {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return NewScripted(replies...)
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	idx := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	var r Reply
	switch {
	case idx < len(s.replies):
		r = s.replies[idx]
	case s.Fallback != nil:
		s.mu.Unlock()
		return s.Fallback(ctx, prompt)
	case len(s.replies) > 0:
		r = s.replies[len(s.replies)-1]
	default:
		s.mu.Unlock()
		return "", fmt.Errorf("scripted provider: no replies configured")
	}
	s.mu.Unlock()
	return r.Text, r.Err
}

// Calls returns how many times Complete was called.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Prompts returns a copy of the prompts seen so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Embedder returns fixed vectors keyed by input text. Unknown inputs are an error.
type Embedder struct {
	mu      sync.Mutex
	Vectors map[string][]float32
	Err     error
	calls   [][]string
}

func (e *Embedder) Name() string  { return "fixed" }
func (e *Embedder) Model() string { return "fixed-test" }

func (e *Embedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), inputs...))
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v, ok := e.Vectors[in]
		if !ok {
			return nil, fmt.Errorf("fixed embedder: no vector for %q", in)
		}
		out[i] = v
	}
	return out, nil
}

// Calls returns the inputs of every Embed call.
func (e *Embedder) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.calls...)
}
