package dto

import "time"

// SystemMetrics is a lightweight snapshot of runtime counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	OverdueMarked            uint64    `json:"overdue_marked"`
	DocumentsUploaded        uint64    `json:"documents_uploaded"`
	ReportsFinished          uint64    `json:"reports_finished"`
	ReportsFailed            uint64    `json:"reports_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
