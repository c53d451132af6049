package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/platform/envutil"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
	llmTokens     *CounterVec
	stageLatency  *HistogramVec
	jobsFinished  *CounterVec
	digestResults *CounterVec
	repairs       *CounterVec
	queueDepth    *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when Init has not run. All methods are nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("curriculum_api_requests_total", "HTTP requests by method, route and status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("curriculum_api_request_seconds", "HTTP request latency.", []string{"method", "route", "status"}, nil),
		apiInflight: NewGauge("curriculum_api_inflight", "HTTP requests in flight."),
		llmRequests: NewCounterVec("curriculum_llm_requests_total", "LLM provider calls by provider, endpoint and status.", []string{"provider", "endpoint", "status"}),
		llmLatency: NewHistogramVec("curriculum_llm_request_seconds", "LLM provider call latency.", []string{"provider", "endpoint", "status"},
			[]float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180}),
		llmTokens: NewCounterVec("curriculum_llm_tokens_total", "LLM tokens by provider and direction.", []string{"provider", "direction"}),
		stageLatency: NewHistogramVec("curriculum_generation_stage_seconds", "Generation pipeline stage latency.", []string{"stage", "status"},
			[]float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600}),
		jobsFinished:  NewCounterVec("curriculum_generation_jobs_total", "Generation jobs reaching a terminal status.", []string{"status"}),
		digestResults: NewCounterVec("curriculum_digests_total", "Content digests by outcome.", []string{"outcome"}),
		repairs:       NewCounterVec("curriculum_draft_repairs_total", "Draft repair attempts by outcome.", []string{"outcome"}),
		queueDepth:    NewGaugeVec("curriculum_generation_jobs", "Generation jobs by status.", []string{"status"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.stageLatency, m.jobsFinished, m.digestResults, m.repairs,
		m.queueDepth,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(provider, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	provider = strings.TrimSpace(provider)
	m.llmRequests.Inc(provider, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), provider, endpoint, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), provider, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), provider, "output")
	}
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) IncJobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsFinished.Inc(status)
}

// IncDigest counts one digest outcome: "llm", "fallback" or "cached".
func (m *Metrics) IncDigest(outcome string) {
	if m == nil {
		return
	}
	m.digestResults.Inc(outcome)
}

func (m *Metrics) IncRepair(outcome string) {
	if m == nil {
		return
	}
	m.repairs.Inc(outcome)
}

// StartJobQueueCollector refreshes the per-status job gauge on a ticker until ctx is done.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 15*time.Second)
	statuses := []string{jobdomain.StatusPending, jobdomain.StatusProcessing, jobdomain.StatusCompleted, jobdomain.StatusFailed}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.collectJobQueue(ctx, db, statuses); err != nil && log != nil {
					log.Warn("metrics: job queue depth query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) collectJobQueue(ctx context.Context, db *gorm.DB, statuses []string) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&jobdomain.GenerationJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range statuses {
		m.queueDepth.Set(0, s)
	}
	for _, row := range rows {
		m.queueDepth.Set(float64(row.Count), row.Status)
	}
	return nil
}
