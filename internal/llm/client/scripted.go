package llmclient

import (
	"context"
	"sync"
)

// Scripted replays a fixed sequence of responses. It is used in tests
// and in dry runs where no provider is configured.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int

	// Prompts records the (system, user) pair of each call in order.
	Prompts [][2]string
}

// NewScripted returns a client whose i-th GenerateJSON call yields
// responses[i] (or errs[i] when non-nil). Calls past the end repeat the
// last entry.
func NewScripted(responses []string, errs []error) *Scripted {
	return &Scripted{responses: responses, errs: errs}
}

func (s *Scripted) Name() string { return "scripted" }
func (s *Scripted) Close() error { return nil }

func (s *Scripted) GenerateJSON(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.Prompts = append(s.Prompts, [2]string{system, user})
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	if i < 0 {
		return "", ErrEmptyResponse
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return s.responses[i], nil
}

// Calls reports how many times GenerateJSON was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
