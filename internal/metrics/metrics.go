package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deusflow/worldnews/internal/digest"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	TotalArticlesCollected int64
	DuplicatesFiltered     int64
	SuccessfulTranslations int64
	FailedTranslations     int64
	ReasoningCalls         int64
	ReasoningFailures      int64
	DigestsProduced        int64
	TelegramMessagesSent   int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunID     string
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	registry      *prometheus.Registry
	articles      *prometheus.CounterVec
	translations  *prometheus.CounterVec
	reasoning     *prometheus.CounterVec
	reasoningTime *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	digestSize    prometheus.Gauge
	deliveries    *prometheus.CounterVec
}

var Global = New()

// New builds a Metrics value with its collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		IsHealthy: true,
		registry:  prometheus.NewRegistry(),
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldnews_articles_total",
			Help: "Articles seen per pipeline step (collected, normalized, skipped, duplicate, candidate).",
		}, []string{"step"}),
		translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldnews_translations_total",
			Help: "Translation attempts by outcome.",
		}, []string{"outcome"}),
		reasoning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldnews_reasoning_calls_total",
			Help: "Reasoning service calls by task and outcome.",
		}, []string{"task", "outcome"}),
		reasoningTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worldnews_reasoning_call_seconds",
			Help:    "Latency of reasoning service calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"task"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worldnews_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage", "outcome"}),
		digestSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worldnews_digest_stories",
			Help: "Stories in the last assembled digest.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldnews_deliveries_total",
			Help: "Telegram deliveries by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.articles, m.translations, m.reasoning, m.reasoningTime,
		m.stageDuration, m.digestSize, m.deliveries)
	return m
}

// Registry exposes the collectors for scraping.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) AddCollected(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalArticlesCollected += int64(n)
	m.articles.WithLabelValues("collected").Add(float64(n))
}

func (m *Metrics) IncrementTranslation(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.SuccessfulTranslations++
		m.translations.WithLabelValues("ok").Inc()
		return
	}
	m.FailedTranslations++
	m.translations.WithLabelValues("error").Inc()
}

func (m *Metrics) IncrementTelegramMessagesSent(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.TelegramMessagesSent++
		m.deliveries.WithLabelValues("ok").Inc()
		return
	}
	m.deliveries.WithLabelValues("error").Inc()
}

// ObserveStage records a pipeline stage timing.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage, outcome(err)).Observe(d.Seconds())
}

// ObserveReasoningCall records one call to the reasoning service.
func (m *Metrics) ObserveReasoningCall(task string, d time.Duration, err error) {
	m.mu.Lock()
	m.ReasoningCalls++
	if err != nil {
		m.ReasoningFailures++
	}
	m.mu.Unlock()

	m.reasoning.WithLabelValues(task, outcome(err)).Inc()
	m.reasoningTime.WithLabelValues(task).Observe(d.Seconds())
}

// RecordDigest folds the counts of a finished run into the metrics.
func (m *Metrics) RecordDigest(d *digest.Digest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dups := d.Stats.Normalized - d.Stats.AfterDedup
	m.DuplicatesFiltered += int64(dups)
	m.DigestsProduced++
	m.LastRunID = d.RunID

	m.articles.WithLabelValues("normalized").Add(float64(d.Stats.Normalized))
	m.articles.WithLabelValues("skipped").Add(float64(d.Stats.Skipped))
	m.articles.WithLabelValues("duplicate").Add(float64(dups))
	m.articles.WithLabelValues("candidate").Add(float64(d.Stats.Candidates))
	m.digestSize.Set(float64(len(d.Entries)))
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

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"total_articles_collected":   m.TotalArticlesCollected,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"successful_translations":    m.SuccessfulTranslations,
		"failed_translations":        m.FailedTranslations,
		"reasoning_calls":            m.ReasoningCalls,
		"reasoning_failures":         m.ReasoningFailures,
		"digests_produced":           m.DigestsProduced,
		"telegram_messages_sent":     m.TelegramMessagesSent,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_id":                m.LastRunID,
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
