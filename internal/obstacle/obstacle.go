// Package obstacle holds detection reports ingested from an external vision
// process. The server does not run detection itself; detectors POST their
// findings and the assistant folds recent ones into its answers.
package obstacle

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wayfind/wayfind/internal/metrics"
)

// DefaultLogCapacity bounds the in-memory report log.
const DefaultLogCapacity = 32

// Report is a single detection from an obstacle detector.
type Report struct {
	ID             string    `json:"id"`
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	DistanceMeters float64   `json:"distance_m"`
	// Bearing is where the obstacle sits relative to the walker, for example
	// "left", "center" or "right".
	Bearing string    `json:"bearing,omitempty"`
	At      time.Time `json:"at"`
}

// Log is a fixed-capacity, newest-first record of reports. It is safe for
// concurrent use.
type Log struct {
	mu       sync.RWMutex
	reports  []Report
	capacity int

	now func() time.Time
}

// NewLog creates a Log keeping at most capacity reports. A non-positive
// capacity uses DefaultLogCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}

	return &Log{
		capacity: capacity,
		now:      time.Now,
	}
}

// Add records r, assigning an ID and timestamp when absent, and returns the
// stored report. The oldest report is dropped once the log is full.
func (l *Log) Add(r Report) Report {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.At.IsZero() {
		r.At = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.reports = append([]Report{r}, l.reports...)
	if len(l.reports) > l.capacity {
		l.reports = l.reports[:l.capacity]
	}

	metrics.ObstacleReports.Inc()

	return r
}

// Recent returns the reports observed within window of now, newest first.
func (l *Log) Recent(window time.Duration) []Report {
	cutoff := l.now().Add(-window)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var recent []Report
	for _, r := range l.reports {
		if r.At.Before(cutoff) {
			break
		}
		recent = append(recent, r)
	}

	return recent
}

// All returns every retained report, newest first.
func (l *Log) All() []Report {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := make([]Report, len(l.reports))
	copy(all, l.reports)

	return all
}
