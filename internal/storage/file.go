package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/digest/internal/logger"
	"github.com/deusflow/digest/internal/news"
)

// FileHistory keeps sent articles in a JSON file.
type FileHistory struct {
	path  string
	ttl   time.Duration
	items map[string]Entry
	mu    sync.RWMutex
	log   *slog.Logger
	now   func() time.Time
}

// NewFileHistory loads the history file at path. A missing or empty file
// starts an empty history; expired entries are dropped on load. A file that
// does not decode is moved to path+".corrupt" and the history starts empty.
func NewFileHistory(path string, ttl time.Duration, log *slog.Logger) (*FileHistory, error) {
	fh := &FileHistory{
		path:  path,
		ttl:   ttlOrDefault(ttl),
		items: make(map[string]Entry),
		log:   logger.OrDiscard(log),
		now:   time.Now,
	}
	if err := fh.load(); err != nil {
		return nil, err
	}
	return fh, nil
}

func (fh *FileHistory) load() error {
	data, err := os.ReadFile(fh.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []Entry
	if err := json.Unmarshal(data, &items); err != nil {
		aside := fh.path + ".corrupt"
		fh.log.Warn("history file is corrupt, starting empty", "path", fh.path, "moved_to", aside, "error", err)
		if err := os.Rename(fh.path, aside); err != nil {
			fh.log.Warn("failed to move corrupt history aside", "path", fh.path, "error", err)
		}
		return nil
	}

	cutoff := fh.now().Add(-fh.ttl)
	for _, item := range items {
		if item.SentAt.After(cutoff) {
			fh.items[item.Hash] = item
		}
	}
	fh.log.Debug("history loaded", "path", fh.path, "entries", len(fh.items))
	return nil
}

func (fh *FileHistory) Seen(_ context.Context, fingerprint string) (bool, error) {
	fh.mu.RLock()
	defer fh.mu.RUnlock()

	item, ok := fh.items[fingerprint]
	if !ok {
		return false, nil
	}
	return item.SentAt.After(fh.now().Add(-fh.ttl)), nil
}

// Mark records articles, drops expired entries and rewrites the file.
func (fh *FileHistory) Mark(_ context.Context, articles []news.Article) error {
	now := fh.now()

	fh.mu.Lock()
	for _, e := range entriesFor(articles, now) {
		fh.items[e.Hash] = e
	}
	fh.cleanupLocked(now)
	fh.mu.Unlock()

	return fh.save()
}

func (fh *FileHistory) cleanupLocked(now time.Time) {
	cutoff := now.Add(-fh.ttl)
	for hash, item := range fh.items {
		if !item.SentAt.After(cutoff) {
			delete(fh.items, hash)
		}
	}
}

// save writes to a temporary file and renames it over the history file.
func (fh *FileHistory) save() error {
	fh.mu.RLock()
	items := make([]Entry, 0, len(fh.items))
	for _, item := range fh.items {
		items = append(items, item)
	}
	fh.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].SentAt.After(items[j].SentAt) })

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if dir := filepath.Dir(fh.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history dir: %w", err)
		}
	}
	tmp := fh.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, fh.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// GetStats returns history statistics.
func (fh *FileHistory) GetStats() map[string]int {
	fh.mu.RLock()
	defer fh.mu.RUnlock()

	return map[string]int{
		"total_items": len(fh.items),
	}
}

func (fh *FileHistory) Close() error { return nil }
