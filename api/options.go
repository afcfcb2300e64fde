// Package api exposes job records over JSON/HTTP with version-checked writes.
package api

import (
	"log/slog"
	"net/http"
)

// Option configures the API handler.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

type config struct {
	middleware func(http.Handler) http.Handler
	logger     *slog.Logger
	listLimit  int
}

// WithMiddleware wraps the handler with middleware (auth, logging, etc.).
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return optionFunc(func(c *config) {
		c.middleware = mw
	})
}

// WithLogger sets the logger used for server-side failures. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *config) {
		if l != nil {
			c.logger = l
		}
	})
}

// WithDefaultListLimit sets how many jobs GET /jobs returns without ?limit. Default: 100.
func WithDefaultListLimit(n int) Option {
	return optionFunc(func(c *config) {
		c.listLimit = n
	})
}
