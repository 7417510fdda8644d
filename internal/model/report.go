package model

import (
	"encoding/json"
	"sync"
	"time"
)

// RowFailure records one row the rewrite left untouched because of an error.
type RowFailure struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	// Key is the original column value the update would have been keyed by.
	Key string `json:"key"`
	Err error  `json:"-"`
}

// MarshalJSON renders the error as text.
func (f RowFailure) MarshalJSON() ([]byte, error) {
	type alias RowFailure
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		alias
		Error string `json:"error"`
	}{alias(f), msg})
}

// RewriteReport summarises one rewrite run. It is safe for concurrent use
// through its methods.
type RewriteReport struct {
	mu sync.Mutex

	TablesProcessed int          `json:"tablesProcessed"`
	RowsScanned     int          `json:"rowsScanned"`
	RowsUpdated     int          `json:"rowsUpdated"`
	RowsFailed      []RowFailure `json:"rowsFailed"`
	Pairs           []string     `json:"pairs"`
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
}

// NewRewriteReport starts an empty report.
func NewRewriteReport() *RewriteReport {
	return &RewriteReport{
		RowsFailed: []RowFailure{},
		StartedAt:  time.Now(),
	}
}

func (r *RewriteReport) AddScanned(n int) {
	r.mu.Lock()
	r.RowsScanned += n
	r.mu.Unlock()
}

func (r *RewriteReport) AddUpdated(n int) {
	r.mu.Lock()
	r.RowsUpdated += n
	r.mu.Unlock()
}

func (r *RewriteReport) AddFailure(f RowFailure) {
	r.mu.Lock()
	r.RowsFailed = append(r.RowsFailed, f)
	r.mu.Unlock()
}

func (r *RewriteReport) TableDone() {
	r.mu.Lock()
	r.TablesProcessed++
	r.mu.Unlock()
}

func (r *RewriteReport) Finish() {
	r.mu.Lock()
	r.FinishedAt = time.Now()
	r.mu.Unlock()
}

// Failed reports whether any row failed.
func (r *RewriteReport) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.RowsFailed) > 0
}
