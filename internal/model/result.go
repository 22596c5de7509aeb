package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeMissing   Outcome = "missing"
	OutcomeError     Outcome = "error"
	// OutcomeSkipped is only recorded by the batch driver; the
	// reconciliation engine never returns it.
	OutcomeSkipped Outcome = "skipped"
)

// BatchResult accumulates per-record outcomes for one run.
type BatchResult struct {
	Updated       int `json:"updated"`
	Unchanged     int `json:"unchanged"`
	NameChanges   int `json:"name_change"`
	ProxChanges   int `json:"prox_change"`
	NoProx        int `json:"no_prox"`
	ProxUnchanged int `json:"prox_unchanged"`
	Skipped       int `json:"skipped"`
	Missing       int `json:"missing"`
	Errors        int `json:"error"`

	MissingRecords []json.RawMessage `json:"-"`
	MissingFile    string            `json:"missing_file,omitempty"`
}

func NewBatchResult() *BatchResult {
	return &BatchResult{}
}

// AddMissing counts a record with no remote match and keeps its source.
func (r *BatchResult) AddMissing(raw json.RawMessage) {
	r.Missing++
	r.MissingRecords = append(r.MissingRecords, raw)
}

func (r *BatchResult) Total() int {
	return r.Updated + r.Unchanged + r.Skipped + r.Missing + r.Errors + r.ProxUnchanged
}

func (r *BatchResult) Summary() string {
	var b strings.Builder
	b.WriteString("Summary:\n")
	lines := []struct {
		label string
		value int
	}{
		{"Updated Patrons", r.Updated},
		{"Unchanged", r.Unchanged},
		{"Name changes", r.NameChanges},
		{"Prox changes", r.ProxChanges},
		{"No Prox number", r.NoProx},
		{"Prox unchanged since previous report", r.ProxUnchanged},
		{"Skipped", r.Skipped},
		{"Missing from Koha", r.Missing},
		{"Errors", r.Errors},
	}
	for _, line := range lines {
		fmt.Fprintf(&b, "    - %s: %d\n", line.label, line.value)
	}
	return b.String()
}

// Run is one recorded CLI invocation.
type Run struct {
	ID         string          `json:"id"`
	Command    string          `json:"command"`
	DryRun     bool            `json:"dry_run"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

type OutcomeRecord struct {
	RunID       string    `json:"run_id"`
	Username    string    `json:"username"`
	UniversalID string    `json:"universal_id"`
	Outcome     Outcome   `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
