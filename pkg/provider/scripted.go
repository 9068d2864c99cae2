package provider

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned when a Scripted provider has no replies left.
var ErrScriptExhausted = errors.New("scripted provider: no replies left")

// Reply is one canned provider answer.
type Reply struct {
	Text string
	Err  error
	// Block makes the call wait for context cancellation before returning.
	Block bool
}

// Call records one request received by a Scripted provider.
type Call struct {
	Prompt            string
	SystemInstruction string
}

// Scripted returns canned replies in order, then repeats the last one.
// It records every call and is safe for concurrent use. Useful for tests and
// for running without credentials.
type Scripted struct {
	mu      sync.Mutex
	name    string
	replies []Reply
	next    int
	calls   []Call
}

// NewScripted creates a provider answering with replies in order.
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{name: "scripted", replies: replies}
}

// NewStatic creates a provider that always answers text.
func NewStatic(text string) *Scripted {
	return NewScripted(Reply{Text: text})
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, SystemInstruction: systemInstruction})
	if len(s.replies) == 0 {
		s.mu.Unlock()
		return "", ErrScriptExhausted
	}
	r := s.replies[min(s.next, len(s.replies)-1)]
	s.next++
	s.mu.Unlock()

	if r.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.Text, r.Err
}

// Calls returns a copy of the recorded requests.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many requests were received.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastPrompt returns the most recent prompt, or "" if none.
func (s *Scripted) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return ""
	}
	return s.calls[len(s.calls)-1].Prompt
}
