package identity

import (
	"time"

	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/logger"
)

type Option func(*Resolver)

func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.baseLog = l
		}
	}
}

// WithDefaultRole sets the role granted when neither a legacy record nor a
// bootstrap entry supplies one. Invalid roles are ignored.
func WithDefaultRole(role caseload.Role) Option {
	return func(r *Resolver) {
		if role.Valid() {
			r.defaultRole = role
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithMigrationConcurrency(n int) Option {
	return func(r *Resolver) {
		r.migrationConcurrency = n
	}
}

// WithStrictLegacyMatch makes resolution fail with ErrAmbiguousLegacyMatch when
// more than one legacy record shares the email, instead of migrating the oldest.
func WithStrictLegacyMatch() Option {
	return func(r *Resolver) {
		r.strictLegacyMatch = true
	}
}

// WithReferences overrides the dependent fields rewritten during migration.
func WithReferences(refs ...caseload.Reference) Option {
	return func(r *Resolver) {
		r.refs = refs
	}
}
