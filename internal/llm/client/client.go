// Package llmclient defines the minimal client surface the semantic
// pass needs from a model provider. Cross-cutting concerns (logging,
// hooks) are layered on via middleware, not baked into clients.
package llmclient

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the provider responds without any
// usable text candidate.
var ErrEmptyResponse = errors.New("llm: empty response")

// Client is a provider-agnostic text generation client. GenerateJSON
// returns the raw model text; callers decide how to parse, recover, or
// repair it.
type Client interface {
	Name() string
	Close() error
	GenerateJSON(ctx context.Context, system, user string) (string, error)
}
