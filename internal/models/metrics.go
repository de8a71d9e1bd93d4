package models

import "time"

// SystemMetrics is a JSON snapshot of service instrumentation.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RunsCompleted            uint64    `json:"runs_completed"`
	RunsFailed               uint64    `json:"runs_failed"`
	PreferenceSeats          uint64    `json:"preference_seats"`
	BackfillSeats            uint64    `json:"backfill_seats"`
	QueuedRuns               int       `json:"queued_runs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
