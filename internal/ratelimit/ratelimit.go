// Package ratelimit provides per-service call rate limiting for the
// external collaborators the pipeline depends on.
package ratelimit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Service identifies an external service with its own rate budget.
// Limits for distinct services are fully independent.
type Service string

const (
	ServiceScraper Service = "scraper"
	ServiceAI      Service = "ai"
	ServiceEmail   Service = "email"
	ServiceCRM     Service = "crm"
)

// Limiter bounds calls to one service to at most maxCalls per period.
// Safe for concurrent use from multiple goroutines.
type Limiter struct {
	limiter *rate.Limiter
	period  time.Duration
}

// NewLimiter creates a limiter allowing maxCalls calls per period. The burst
// equals maxCalls, so a fresh limiter admits a full window immediately and
// the worst-case wait for one more call is bounded by period.
func NewLimiter(maxCalls int, period time.Duration) *Limiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(period/time.Duration(maxCalls)), maxCalls),
		period:  period,
	}
}

// Wait blocks until issuing another call would not exceed the limit, then
// records the call. Returns an error only when ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "ratelimit: wait")
	}
	return nil
}

// Allow reports whether a call could proceed right now without waiting.
// It does not record a call.
func (l *Limiter) Allow() bool {
	return l.limiter.Tokens() >= 1
}

// Registry maps each external service to its limiter. Constructed once at
// process start and shared by reference; there is no hidden global state.
type Registry struct {
	Scraper *Limiter
	AI      *Limiter
	Email   *Limiter
	CRM     *Limiter
}

// Limits holds per-minute call budgets for each service.
type Limits struct {
	ScraperPerMinute int
	AIPerMinute      int
	EmailPerMinute   int
	CRMPerMinute     int
}

// NewRegistry builds the limiter set from per-minute budgets.
func NewRegistry(l Limits) *Registry {
	return &Registry{
		Scraper: NewLimiter(l.ScraperPerMinute, time.Minute),
		AI:      NewLimiter(l.AIPerMinute, time.Minute),
		Email:   NewLimiter(l.EmailPerMinute, time.Minute),
		CRM:     NewLimiter(l.CRMPerMinute, time.Minute),
	}
}

// Get returns the limiter for svc, or nil for an unknown service.
func (r *Registry) Get(svc Service) *Limiter {
	switch svc {
	case ServiceScraper:
		return r.Scraper
	case ServiceAI:
		return r.AI
	case ServiceEmail:
		return r.Email
	case ServiceCRM:
		return r.CRM
	}
	return nil
}
