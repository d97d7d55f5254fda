package embed

import (
	"context"
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// StatsSnapshot is a point-in-time aggregate of embedding batch latencies.
type StatsSnapshot struct {
	Provider string  `json:"provider,omitempty"`
	Model    string  `json:"model,omitempty"`
	Count    int     `json:"count"`
	Errors   int     `json:"errors"`
	Texts    int     `json:"texts"`
	Gaps     int     `json:"gaps"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// LatencyStats tracks recent embedding batch latencies within a rolling
// window. Error, text and gap counters are cumulative.
type LatencyStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	errors  int
	texts   int
	gaps    int
}

func NewLatencyStats(maxAge time.Duration) *LatencyStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LatencyStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one successful batch latency sample.
func (s *LatencyStats) Record(durationMs int64) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: durationMs,
	})
}

// RecordBatch adds a batch outcome: texts sent, vectors missing, and
// whether the whole batch failed.
func (s *LatencyStats) RecordBatch(texts, gaps int, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts += texts
	s.gaps += gaps
	if failed {
		s.errors++
	}
}

func (s *LatencyStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{Errors: s.errors, Texts: s.texts, Gaps: s.gaps}
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return StatsSnapshot{
		Count:  len(values),
		Errors: s.errors,
		Texts:  s.texts,
		Gaps:   s.gaps,
		MinMs:  values[0],
		MaxMs:  values[len(values)-1],
		AvgMs:  float64(sum) / float64(len(values)),
		P50Ms:  percentile(values, 50),
		P95Ms:  percentile(values, 95),
		P99Ms:  percentile(values, 99),
	}
}

func (s *LatencyStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	if lower == upper {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}

// Timed wraps e so every batch is recorded in stats.
func Timed(e Embedder, stats *LatencyStats) Embedder {
	return &timed{Embedder: e, stats: stats}
}

type timed struct {
	Embedder
	stats *LatencyStats
}

func (t *timed) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := t.Embedder.Embed(ctx, texts)
	if err != nil {
		t.stats.RecordBatch(len(texts), 0, true)
		return nil, err
	}
	t.stats.Record(time.Since(start).Milliseconds())
	t.stats.RecordBatch(len(texts), CountGaps(vecs), false)
	return vecs, nil
}

// CountGaps returns the number of nil or empty vectors.
func CountGaps(vecs [][]float32) int {
	n := 0
	for _, v := range vecs {
		if len(v) == 0 {
			n++
		}
	}
	return n
}
