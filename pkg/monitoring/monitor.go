// Package monitoring records the latency and outcome of every
// planning+execution cycle and aggregates them into the statistics the
// planner (table feedback) and operators (dashboard) consume.
package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/models"
)

const defaultMaxHistory = 1000

// feedbackWindow bounds how far back table feedback looks. Older behavior
// should not bias current table selection.
const feedbackWindow = time.Hour

// ClassifyOutcome maps a request result onto the outcome taxonomy: failed
// when any error occurred, slow when it succeeded past the slow-query
// threshold, success otherwise.
func ClassifyOutcome(failed bool, duration, slowThreshold time.Duration) string {
	switch {
	case failed:
		return models.OutcomeFailed
	case duration > slowThreshold:
		return models.OutcomeSlow
	default:
		return models.OutcomeSuccess
	}
}

// Monitor keeps a bounded, append-only history of performance records.
type Monitor struct {
	mu      sync.Mutex
	records []models.PerformanceRecord // ascending by arrival
	max     int

	totalRequests int64
	totalFailed   int64
	totalDuration time.Duration

	slowThreshold time.Duration
	logger        *zap.Logger
}

// New creates a monitor keeping at most maxHistory records.
func New(maxHistory int, slowThreshold time.Duration, logger *zap.Logger) *Monitor {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Monitor{
		max:           maxHistory,
		slowThreshold: slowThreshold,
		logger:        logger.Named("monitoring"),
	}
}

// SlowThreshold returns the configured slow-query threshold.
func (m *Monitor) SlowThreshold() time.Duration {
	return m.slowThreshold
}

// Record appends one performance record. Assigns ID and timestamp when the
// caller left them zero. Never returns an error: metric recording must not
// fail the user-visible response.
func (m *Monitor) Record(rec models.PerformanceRecord) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.records = append(m.records, rec)
	if len(m.records) > m.max {
		m.records = m.records[len(m.records)-m.max:]
	}
	m.totalRequests++
	if rec.Outcome == models.OutcomeFailed {
		m.totalFailed++
	}
	m.totalDuration += rec.Duration
	m.mu.Unlock()

	if rec.Outcome == models.OutcomeSlow {
		m.logger.Warn("Slow query",
			zap.String("question", rec.Question),
			zap.Duration("duration", rec.Duration),
			zap.Float64("complexity", rec.ComplexityScore))
	}
}

// SlowQueries returns up to limit records slower than thresholdMS,
// slowest first. Cached hits are excluded; they say nothing about query cost.
func (m *Monitor) SlowQueries(threshold time.Duration, limit int) []models.PerformanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slow []models.PerformanceRecord
	for _, r := range m.records {
		if !r.CacheHit && r.Duration > threshold && r.Outcome != models.OutcomeFailed {
			slow = append(slow, r)
		}
	}
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].Duration > slow[j].Duration })
	if limit > 0 && len(slow) > limit {
		slow = slow[:limit]
	}
	return slow
}

// FailedQueries returns up to limit failed records, most recent first.
func (m *Monitor) FailedQueries(limit int) []models.PerformanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []models.PerformanceRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Outcome == models.OutcomeFailed {
			failed = append(failed, m.records[i])
			if limit > 0 && len(failed) == limit {
				break
			}
		}
	}
	return failed
}

// TrendBucket aggregates one hour of requests.
type TrendBucket struct {
	Hour        time.Time     `json:"hour"`
	Count       int           `json:"count"`
	AvgDuration time.Duration `json:"avg_duration"`
	FailureRate float64       `json:"failure_rate"`
}

// Trend aggregates records within the trailing window into hourly buckets,
// oldest first.
func (m *Monitor) Trend(window time.Duration) []TrendBucket {
	cutoff := time.Now().Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	type agg struct {
		count    int
		failures int
		total    time.Duration
	}
	byHour := make(map[time.Time]*agg)
	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		hour := r.Timestamp.Truncate(time.Hour)
		a, ok := byHour[hour]
		if !ok {
			a = &agg{}
			byHour[hour] = a
		}
		a.count++
		a.total += r.Duration
		if r.Outcome == models.OutcomeFailed {
			a.failures++
		}
	}

	buckets := make([]TrendBucket, 0, len(byHour))
	for hour, a := range byHour {
		buckets = append(buckets, TrendBucket{
			Hour:        hour,
			Count:       a.count,
			AvgDuration: a.total / time.Duration(a.count),
			FailureRate: float64(a.failures) / float64(a.count),
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Hour.Before(buckets[j].Hour) })
	return buckets
}

// TableFeedback scores recent history for queries that used the table:
// 1.0 when every recent use succeeded fast, 0.5 weight for slow successes,
// 0 for failures. Returns 0 for tables with no recent history, so unknown
// tables get no selection bonus. Satisfies schema.FeedbackFunc.
func (m *Monitor) TableFeedback(tableName string) float64 {
	cutoff := time.Now().Add(-feedbackWindow)

	m.mu.Lock()
	defer m.mu.Unlock()

	var total, score float64
	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) || r.CacheHit {
			continue
		}
		used := false
		for _, t := range r.TablesUsed {
			if t == tableName {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		total++
		switch r.Outcome {
		case models.OutcomeSuccess:
			score++
		case models.OutcomeSlow:
			score += 0.5
		}
	}
	if total == 0 {
		return 0
	}
	return score / total
}

// OverallStats is the headline counter block for the dashboard.
type OverallStats struct {
	TotalRequests int64         `json:"total_requests"`
	FailedCount   int64         `json:"failed_count"`
	SuccessRate   float64       `json:"success_rate"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// TableUsage reports per-table selection frequency and average latency.
type TableUsage struct {
	TableName   string        `json:"table_name"`
	UsageCount  int           `json:"usage_count"`
	AvgDuration time.Duration `json:"avg_duration"`
	Feedback    float64       `json:"feedback"`
}

// Dashboard bundles the aggregates exposed to the monitoring surface.
type Dashboard struct {
	Stats       OverallStats               `json:"stats"`
	SlowQueries []models.PerformanceRecord `json:"slow_queries"`
	Failed      []models.PerformanceRecord `json:"failed_queries"`
	Trend       []TrendBucket              `json:"trend"`
	TableUsage  []TableUsage               `json:"table_usage"`
}

// Snapshot assembles the dashboard over the trailing window.
func (m *Monitor) Snapshot(window time.Duration) Dashboard {
	d := Dashboard{
		SlowQueries: m.SlowQueries(m.slowThreshold, 10),
		Failed:      m.FailedQueries(10),
		Trend:       m.Trend(window),
		TableUsage:  m.tableUsage(),
	}

	m.mu.Lock()
	d.Stats = OverallStats{
		TotalRequests: m.totalRequests,
		FailedCount:   m.totalFailed,
	}
	if m.totalRequests > 0 {
		d.Stats.SuccessRate = float64(m.totalRequests-m.totalFailed) / float64(m.totalRequests)
		d.Stats.AvgDuration = m.totalDuration / time.Duration(m.totalRequests)
	}
	m.mu.Unlock()

	return d
}

func (m *Monitor) tableUsage() []TableUsage {
	m.mu.Lock()
	type agg struct {
		count int
		total time.Duration
	}
	byTable := make(map[string]*agg)
	for _, r := range m.records {
		for _, t := range r.TablesUsed {
			a, ok := byTable[t]
			if !ok {
				a = &agg{}
				byTable[t] = a
			}
			a.count++
			a.total += r.Duration
		}
	}
	m.mu.Unlock()

	usage := make([]TableUsage, 0, len(byTable))
	for name, a := range byTable {
		usage = append(usage, TableUsage{
			TableName:   name,
			UsageCount:  a.count,
			AvgDuration: a.total / time.Duration(a.count),
			Feedback:    m.TableFeedback(name),
		})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].UsageCount != usage[j].UsageCount {
			return usage[i].UsageCount > usage[j].UsageCount
		}
		return usage[i].TableName < usage[j].TableName
	})
	return usage
}
