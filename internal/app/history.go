package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/deusflow/digest/internal/config"
	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/rss"
	"github.com/deusflow/digest/internal/storage"
)

// openHistory returns the configured digest history backend.
func openHistory(ctx context.Context, cfg config.History, log *slog.Logger) (storage.History, error) {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	switch cfg.Backend {
	case config.HistoryFile:
		return storage.NewFileHistory(cfg.Path, ttl, log)
	case config.HistoryPostgres:
		return storage.NewPostgresHistory(ctx, cfg.DatabaseURL, ttl, log)
	default:
		return storage.Nop{}, nil
	}
}

// seenFilter adapts a History to the intake filter. A lookup error counts as
// not seen so a history outage never empties the digest.
func seenFilter(h storage.History, log *slog.Logger) rss.Seen {
	return func(ctx context.Context, a news.Article) bool {
		seen, err := h.Seen(ctx, news.Fingerprint(a.Title, a.URL))
		if err != nil {
			log.Warn("history lookup failed", "title", a.Title, "error", err)
			return false
		}
		return seen
	}
}
