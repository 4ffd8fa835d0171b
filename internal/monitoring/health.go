package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// SweepStatus tracks progress of the running grid search or walk-forward job
type SweepStatus struct {
	mu        sync.RWMutex
	phase     string
	total     int
	completed int
	started   time.Time
	lastDone  time.Time
	errors    []string
}

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase,omitempty"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Progress  float64   `json:"progress_pct"`
	ETA       string    `json:"eta,omitempty"`
	LastDone  time.Time `json:"last_done"`
	Uptime    string    `json:"uptime"`
	Errors    []string  `json:"errors,omitempty"`
}

func NewSweepStatus() *SweepStatus {
	return &SweepStatus{
		errors: make([]string, 0),
	}
}

// Begin starts a new phase of total tasks and resets the counters
func (s *SweepStatus) Begin(phase string, total int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.total = total
	s.completed = 0
	s.started = time.Now()
}

// Increment marks one task complete
func (s *SweepStatus) Increment() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
	s.lastDone = time.Now()
}

func (s *SweepStatus) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err.Error())
}

// Snapshot returns the current status
func (s *SweepStatus) Snapshot() HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := "idle"
	switch {
	case len(s.errors) > 0:
		status = "failed"
	case s.total > 0 && s.completed < s.total:
		status = "running"
	case s.total > 0:
		status = "done"
	}

	h := HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Phase:     s.phase,
		Total:     s.total,
		Completed: s.completed,
		LastDone:  s.lastDone,
		Uptime:    time.Since(startTime).String(),
		Errors:    s.errors,
	}
	if s.total > 0 {
		h.Progress = float64(s.completed) / float64(s.total) * 100
	}
	if s.completed > 0 && s.completed < s.total {
		avg := time.Since(s.started) / time.Duration(s.completed)
		h.ETA = (avg * time.Duration(s.total-s.completed)).Round(time.Second).String()
	}
	return h
}

func (s *SweepStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := s.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if health.Status == "failed" {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}
