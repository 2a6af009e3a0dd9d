// Package metrics keeps process-wide pipeline counters for the monitoring endpoint.
package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	RunsStarted        int64
	RunsEmpty          int64
	FeedsFetched       int64
	FeedsFailed        int64
	ArticlesFetched    int64
	ArticlesExtracted  int64
	ExtractionFailures int64
	ArticlesKept       int64
	SummariesGenerated int64
	SummaryFallbacks   int64
	RelevanceFallbacks int64
	DigestsWritten     int64
	NotificationsSent  int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) add(counter *int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter += int64(n)
}

func (m *Metrics) IncrementRuns() { m.add(&m.RunsStarted, 1) }

func (m *Metrics) IncrementEmptyRuns() { m.add(&m.RunsEmpty, 1) }

func (m *Metrics) IncrementDigestsWritten() { m.add(&m.DigestsWritten, 1) }

func (m *Metrics) IncrementNotificationsSent() { m.add(&m.NotificationsSent, 1) }

func (m *Metrics) IncrementRelevanceFallbacks() { m.add(&m.RelevanceFallbacks, 1) }

func (m *Metrics) AddArticlesFetched(n int) { m.add(&m.ArticlesFetched, n) }

func (m *Metrics) AddArticlesExtracted(n int) { m.add(&m.ArticlesExtracted, n) }

func (m *Metrics) AddArticlesKept(n int) { m.add(&m.ArticlesKept, n) }

// RecordFeed counts one feed fetch outcome.
func (m *Metrics) RecordFeed(err error) {
	if err != nil {
		m.add(&m.FeedsFailed, 1)
		return
	}
	m.add(&m.FeedsFetched, 1)
}

// RecordExtraction counts one extraction failure; successes are counted in bulk.
func (m *Metrics) RecordExtraction(err error) {
	if err != nil {
		m.add(&m.ExtractionFailures, 1)
	}
}

// RecordSummary counts a generated or fallback summary.
func (m *Metrics) RecordSummary(fallback bool) {
	if fallback {
		m.add(&m.SummaryFallbacks, 1)
		return
	}
	m.add(&m.SummariesGenerated, 1)
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"runs_started":               m.RunsStarted,
		"runs_empty":                 m.RunsEmpty,
		"feeds_fetched":              m.FeedsFetched,
		"feeds_failed":               m.FeedsFailed,
		"articles_fetched":           m.ArticlesFetched,
		"articles_extracted":         m.ArticlesExtracted,
		"extraction_failures":        m.ExtractionFailures,
		"articles_kept":              m.ArticlesKept,
		"summaries_generated":        m.SummariesGenerated,
		"summary_fallbacks":          m.SummaryFallbacks,
		"relevance_fallbacks":        m.RelevanceFallbacks,
		"digests_written":            m.DigestsWritten,
		"notifications_sent":         m.NotificationsSent,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
