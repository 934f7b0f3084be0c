// Package scanstore keeps the scans submitted to the scan service and
// runs each one in its own cancellable goroutine.
package scanstore

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vulnscan/vulnscan/pkg/finding"
)

// Status is the lifecycle state of a scan.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimeout   Status = "timeout"
)

// Statuses lists every state in lifecycle order.
var Statuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Request is what a client submits.
type Request struct {
	URL     string  `json:"url"`
	Profile string  `json:"profile,omitempty"`
	Modules string  `json:"modules,omitempty"`
	MaxRPS  float64 `json:"max_rps,omitempty"`
	Evasion bool    `json:"evasion,omitempty"`
}

// Scan is one submitted scan. Values handed out by the store are copies.
type Scan struct {
	ID      string `json:"id"`
	Request `json:",inline"`

	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"start_time,omitempty"`
	EndedAt   *time.Time `json:"end_time,omitempty"`
	Error     string     `json:"error,omitempty"`

	Findings       []finding.Finding        `json:"findings"`
	SeverityCounts map[finding.Severity]int `json:"severity_counts"`
	TotalFindings  int                      `json:"total_findings"`
	ModulesUsed    []string                 `json:"modules_used"`
	Requests       int64                    `json:"requests"`
}

// Summary is the list view of a scan, without findings.
type Summary struct {
	ID             string                   `json:"id"`
	URL            string                   `json:"url"`
	Profile        string                   `json:"profile,omitempty"`
	Status         Status                   `json:"status"`
	StartedAt      *time.Time               `json:"start_time,omitempty"`
	EndedAt        *time.Time               `json:"end_time,omitempty"`
	SeverityCounts map[finding.Severity]int `json:"severity_counts"`
	TotalFindings  int                      `json:"total_findings"`
}

// Stats describes the store as a whole. Severity totals come from the
// most recently finished completed scan only.
type Stats struct {
	TotalScans     int                      `json:"total_scans"`
	InProgress     int                      `json:"in_progress"`
	SeverityTotals map[finding.Severity]int `json:"severity_totals"`
	LatestScanID   *string                  `json:"latest_scan_id"`
}

func (s *Scan) clone() Scan {
	c := *s
	c.Findings = slices.Clone(s.Findings)
	c.ModulesUsed = slices.Clone(s.ModulesUsed)
	c.SeverityCounts = maps.Clone(s.SeverityCounts)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return c
}

func (s *Scan) summary() Summary {
	c := s.clone()
	return Summary{
		ID:             c.ID,
		URL:            c.URL,
		Profile:        c.Profile,
		Status:         c.Status,
		StartedAt:      c.StartedAt,
		EndedAt:        c.EndedAt,
		SeverityCounts: c.SeverityCounts,
		TotalFindings:  c.TotalFindings,
	}
}

// SetFindings stores fs and the values derived from them.
func (s *Scan) SetFindings(fs []finding.Finding) {
	if fs == nil {
		fs = []finding.Finding{}
	}
	s.Findings = fs
	s.TotalFindings = len(fs)
	s.SeverityCounts = finding.CountBySeverity(fs)
	s.ModulesUsed = finding.Modules(fs)
	if s.ModulesUsed == nil {
		s.ModulesUsed = []string{}
	}
}

// Store is a concurrency-safe map of scans keyed by id. Listing keeps
// submission order.
type Store struct {
	mu    sync.RWMutex
	scans map[string]*Scan
	order []string

	// now is swapped in tests
	now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		scans: make(map[string]*Scan),
		now:   time.Now,
	}
}

// Create adds a pending scan for req and returns it.
func (s *Store) Create(req Request) Scan {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := &Scan{
		ID:             uuid.New().String(),
		Request:        req,
		Status:         StatusPending,
		CreatedAt:      s.now(),
		Findings:       []finding.Finding{},
		SeverityCounts: map[finding.Severity]int{},
		ModulesUsed:    []string{},
	}
	s.scans[sc.ID] = sc
	s.order = append(s.order, sc.ID)
	return sc.clone()
}

// Get returns the scan with the given id.
func (s *Store) Get(id string) (Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scans[id]
	if !ok {
		return Scan{}, ErrNotFound
	}
	return sc.clone(), nil
}

// List returns every scan in submission order.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.scans[id].summary())
	}
	return out
}

// Update applies fn to the stored scan under the store lock. A scan in a
// terminal state is not changed and Update reports false.
func (s *Store) Update(id string, fn func(*Scan)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return false, ErrNotFound
	}
	if sc.Status.Terminal() {
		return false, nil
	}
	fn(sc)
	return true, nil
}

// Delete removes the scan.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[id]; !ok {
		return ErrNotFound
	}
	delete(s.scans, id)
	s.order = slices.DeleteFunc(s.order, func(x string) bool { return x == id })
	return nil
}

// Counts returns the number of scans in each status.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for _, sc := range s.scans {
		counts[sc.Status]++
	}
	return counts
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		TotalScans:     len(s.scans),
		SeverityTotals: map[finding.Severity]int{},
	}
	var latest *Scan
	for _, id := range s.order {
		sc := s.scans[id]
		if sc.Status == StatusRunning {
			st.InProgress++
		}
		if sc.Status != StatusCompleted || sc.EndedAt == nil {
			continue
		}
		if latest == nil || sc.EndedAt.After(*latest.EndedAt) {
			latest = sc
		}
	}
	if latest != nil {
		st.SeverityTotals = maps.Clone(latest.SeverityCounts)
		id := latest.ID
		st.LatestScanID = &id
	}
	return st
}

// expired returns the ids of terminal scans that ended before cutoff.
func (s *Store) expired(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, id := range s.order {
		sc := s.scans[id]
		if sc.Status.Terminal() && sc.EndedAt != nil && sc.EndedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
