package identity

import (
	"context"
	"errors"
	"time"

	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/logger"
	"golang.org/x/sync/errgroup"
)

// Migrator rewrites dependent references from one user key to another. Every
// reference is attempted independently; failures are recorded, never returned early.
type Migrator struct {
	store       ReferenceStore
	refs        []caseload.Reference
	concurrency int
	log         *logger.Logger
	now         func() time.Time
}

func NewMigrator(store ReferenceStore, baseLog *logger.Logger, refs ...caseload.Reference) *Migrator {
	if len(refs) == 0 {
		refs = caseload.References
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Migrator{
		store: store,
		refs:  refs,
		log:   baseLog.With("component", "Migrator"),
		now:   time.Now,
	}
}

// SetConcurrency bounds in-flight record updates per reference. Zero means unbounded.
func (m *Migrator) SetConcurrency(n int) {
	m.concurrency = n
}

// Migrate blocks until every reference has been attempted.
func (m *Migrator) Migrate(ctx context.Context, oldKey, newKey string) *caseload.MigrationReport {
	report := caseload.NewMigrationReport(oldKey, newKey, m.now())
	if oldKey == "" || oldKey == newKey {
		report.Finish(m.now())
		return report
	}

	g := errgroup.Group{}
	for _, ref := range m.refs {
		ref := ref
		g.Go(func() error {
			m.migrateReference(ctx, ref, oldKey, newKey, report)
			return nil
		})
	}
	_ = g.Wait()
	report.Finish(m.now())

	m.log.Info("reference migration finished",
		"run_id", report.RunID,
		"old_key", oldKey,
		"new_key", newKey,
		"migrated", report.Migrated(),
		"failed", report.ErrorCount())
	return report
}

func (m *Migrator) migrateReference(ctx context.Context, ref caseload.Reference, oldKey, newKey string, report *caseload.MigrationReport) {
	ids, err := m.store.FindReferencing(ctx, ref, oldKey)
	if err != nil {
		m.log.Warn("reference lookup failed", "reference", ref.String(), "old_key", oldKey, "error", err)
		report.Fail(ref, "", err)
		return
	}

	g := errgroup.Group{}
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for _, id := range ids {
		id := id
		g.Go(func() error {
			changed, err := m.store.SetReference(ctx, ref, id, oldKey, newKey)
			switch {
			case errors.Is(err, caseload.ErrNotFound):
				// removed since the lookup; nothing left pointing at oldKey
			case err != nil:
				m.log.Warn("reference update failed", "reference", ref.String(), "record_id", id, "error", err)
				report.Fail(ref, id, err)
			case changed:
				report.Record(ref)
			}
			return nil
		})
	}
	_ = g.Wait()
}
