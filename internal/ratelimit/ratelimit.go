package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned by Use once the per-run request budget is spent.
var ErrBudgetExhausted = errors.New("ai request budget exhausted")

// Pacer spaces out outbound requests per host. A zero interval disables pacing.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

func (p *Pacer) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[host]
	if !ok {
		limit := rate.Inf
		if p.interval > 0 {
			limit = rate.Every(p.interval)
		}
		l = rate.NewLimiter(limit, 1)
		p.limiters[host] = l
	}
	return l
}

// Wait blocks until a request to rawURL's host may proceed.
func (p *Pacer) Wait(ctx context.Context, rawURL string) error {
	if p == nil || p.interval <= 0 {
		return ctx.Err()
	}
	return p.limiter(hostOf(rawURL)).Wait(ctx)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// RequestBudget counts AI calls per provider within a run. A zero limit means unlimited.
type RequestBudget struct {
	mu     sync.Mutex
	limit  int
	used   map[string]int
	total  int
	denied int
	log    *slog.Logger
}

func NewRequestBudget(limit int, log *slog.Logger) *RequestBudget {
	return &RequestBudget{
		limit: limit,
		used:  make(map[string]int),
		log:   log,
	}
}

// Use reserves one request for provider or returns ErrBudgetExhausted.
func (b *RequestBudget) Use(provider string) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit > 0 && b.total >= b.limit {
		b.denied++
		if b.denied == 1 && b.log != nil {
			b.log.Warn("ai request budget reached", "provider", provider, "limit", b.limit)
		}
		return ErrBudgetExhausted
	}

	b.used[provider]++
	b.total++
	if b.log != nil {
		b.log.Debug("ai usage", "provider", provider, "used", b.used[provider], "total", b.total, "limit", b.limit)
	}
	return nil
}

// Stats reports usage counters, keyed for the monitoring endpoint.
func (b *RequestBudget) Stats() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := map[string]int{
		"total_used":  b.total,
		"total_limit": b.limit,
		"denied":      b.denied,
	}
	for p, n := range b.used {
		stats[p+"_used"] = n
	}
	return stats
}
