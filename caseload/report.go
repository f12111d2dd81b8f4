package caseload

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MigrationReport accumulates the outcome of rewriting references from OldKey to NewKey.
// Record and Fail may be called from concurrent goroutines.
type MigrationReport struct {
	RunID      string
	OldKey     string
	NewKey     string
	StartedAt  time.Time
	FinishedAt time.Time

	mu     sync.Mutex
	counts map[Reference]int
	errs   map[Reference][]error
}

func NewMigrationReport(oldKey, newKey string, started time.Time) *MigrationReport {
	return &MigrationReport{
		RunID:     uuid.NewString(),
		OldKey:    oldKey,
		NewKey:    newKey,
		StartedAt: started,
		counts:    map[Reference]int{},
		errs:      map[Reference][]error{},
	}
}

func (r *MigrationReport) Record(ref Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[ref]++
}

func (r *MigrationReport) Fail(ref Reference, recordID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[ref] = append(r.errs[ref], &RecordError{Reference: ref, RecordID: recordID, Err: err})
}

func (r *MigrationReport) Finish(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = at
}

// Count returns the number of records rewritten for ref.
func (r *MigrationReport) Count(ref Reference) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[ref]
}

func (r *MigrationReport) Errors(ref Reference) []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs[ref]...)
}

// Counts is keyed by Reference.String().
func (r *MigrationReport) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for ref, n := range r.counts {
		out[ref.String()] = n
	}
	return out
}

func (r *MigrationReport) Migrated() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

func (r *MigrationReport) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, errs := range r.errs {
		total += len(errs)
	}
	return total
}

func (r *MigrationReport) Failed() bool {
	return r.ErrorCount() > 0
}

// AllErrors returns every recorded error ordered by reference.
func (r *MigrationReport) AllErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make([]Reference, 0, len(r.errs))
	for ref := range r.errs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	var out []error
	for _, ref := range refs {
		out = append(out, r.errs[ref]...)
	}
	return out
}

// Err is nil when every reference update succeeded.
func (r *MigrationReport) Err() error {
	if r == nil || !r.Failed() {
		return nil
	}
	return &PartialMigrationError{Report: r}
}
