// Package llm provides middleware layers over llmclient.Client.
package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	llmclient "snapshotter/internal/llm/client"
)

// Middleware wraps a client with an additional concern.
type Middleware func(next llmclient.Client) llmclient.Client

// Chain applies middlewares so the first listed becomes the outermost
// layer.
func Chain(c llmclient.Client, mws ...Middleware) llmclient.Client {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// WithLogging logs request sizes, durations, and errors. Provide a
// custom logger or nil to use the global one.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.L()
	}
	return func(next llmclient.Client) llmclient.Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next llmclient.Client
	log  *zap.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	l.log.Info("llm request",
		zap.String("client", l.next.Name()),
		zap.Int("system_bytes", len(system)),
		zap.Int("user_bytes", len(user)),
	)
	start := time.Now()
	raw, err := l.next.GenerateJSON(ctx, system, user)
	if err != nil {
		l.log.Warn("llm error",
			zap.String("client", l.next.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return raw, err
	}
	l.log.Info("llm response",
		zap.String("client", l.next.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_bytes", len(raw)),
	)
	return raw, nil
}
