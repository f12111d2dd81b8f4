// Package identity reconciles an authenticated identity with the records already
// held for that person, folding any differently keyed legacy record into the
// canonical one.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/logger"
)

type Path string

const (
	PathExisting Path = "existing"
	PathMigrated Path = "migrated"
	PathCreated  Path = "created"
)

// Result is the outcome of one resolution. Identity is always valid when the
// accompanying error is nil; the remaining fields describe non-fatal side effects.
type Result struct {
	Identity caseload.ResolvedIdentity
	Path     Path

	// Set when a migration ran, either on first contact or resumed by a later login.
	LegacyKey       string
	Migration       *caseload.MigrationReport
	LegacyDeleteErr error
	AmbiguousKeys   []string
}

// Err joins the non-fatal problems recorded during resolution.
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	var errs []error
	if err := r.Migration.Err(); err != nil {
		errs = append(errs, err)
	}
	if r.LegacyDeleteErr != nil {
		errs = append(errs, r.LegacyDeleteErr)
	}
	if len(r.AmbiguousKeys) > 1 {
		errs = append(errs, &caseload.AmbiguousMatchError{Keys: r.AmbiguousKeys})
	}
	return errors.Join(errs...)
}

type Resolver struct {
	store     Store
	directory Directory
	locator   *Locator
	migrator  *Migrator

	baseLog              *logger.Logger
	log                  *logger.Logger
	now                  func() time.Time
	defaultRole          caseload.Role
	migrationConcurrency int
	strictLegacyMatch    bool
	refs                 []caseload.Reference
}

func New(store Store, directory Directory, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		directory:   directory,
		baseLog:     logger.Nop(),
		now:         time.Now,
		defaultRole: caseload.DefaultRole,
		refs:        caseload.References,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.baseLog.With("component", "Resolver")
	r.locator = NewLocator(store)
	r.migrator = NewMigrator(store, r.baseLog, r.refs...)
	r.migrator.SetConcurrency(r.migrationConcurrency)
	r.migrator.now = r.now
	return r
}

// Resolve maps an authentication event to its canonical identity, creating or
// migrating records as needed. It is idempotent per provider key. Any store
// failure returns an error matching caseload.ErrStoreUnavailable, and the call
// may be retried as a whole.
func (r *Resolver) Resolve(ctx context.Context, event caseload.IdentityEvent) (*Result, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	event.ProviderKey = strings.TrimSpace(event.ProviderKey)
	event.Email = strings.TrimSpace(event.Email)

	existing, err := r.store.GetUser(ctx, event.ProviderKey)
	switch {
	case err == nil:
		return r.resolveExisting(ctx, *existing, event), nil
	case !errors.Is(err, caseload.ErrNotFound):
		return nil, caseload.Unavailable("get canonical user", err)
	}

	candidates, err := r.locator.FindByEmail(ctx, event.Email, event.ProviderKey)
	if err != nil {
		return nil, caseload.Unavailable("find legacy users", err)
	}
	if len(candidates) == 0 {
		return r.resolveFirstTime(ctx, event)
	}
	return r.resolveLegacy(ctx, event, candidates)
}

func (r *Resolver) bootstrapEntry(email string) (caseload.BootstrapEntry, bool) {
	if r.directory == nil {
		return caseload.BootstrapEntry{}, false
	}
	return r.directory.Lookup(email)
}

// resolveExisting never consults the bootstrap directory: roles granted or
// changed after the first login must survive every later login.
func (r *Resolver) resolveExisting(ctx context.Context, stored caseload.User, event caseload.IdentityEvent) *Result {
	identity := caseload.IdentityFromUser(stored)
	if identity.Name == "" {
		identity.Name = event.Name()
	}
	if identity.Email == "" {
		identity.Email = event.Email
	}
	result := &Result{Identity: identity, Path: PathExisting}
	if stored.Migrated() {
		r.resumeMigration(ctx, stored, result)
	}
	r.log.Debug("resolved existing identity", "key", identity.Key, "role", identity.Role.String())
	return result
}

// resumeMigration finishes a migration left incomplete by an earlier login. The
// legacy record stays in place until every reference has moved, so its presence
// is what marks the migration as unfinished. Failures here never block the login.
func (r *Resolver) resumeMigration(ctx context.Context, stored caseload.User, result *Result) {
	legacyKey := stored.MigratedFrom
	if _, err := r.store.GetUser(ctx, legacyKey); err != nil {
		if !errors.Is(err, caseload.ErrNotFound) {
			r.log.Warn("legacy record check failed", "key", stored.Key, "legacy_key", legacyKey, "error", err)
		}
		return
	}

	result.LegacyKey = legacyKey
	result.Migration = r.migrator.Migrate(ctx, legacyKey, stored.Key)
	r.retireLegacy(ctx, stored.Key, result)
	r.log.Info("resumed legacy migration",
		"key", stored.Key, "legacy_key", legacyKey, "run_id", result.Migration.RunID,
		"migrated", result.Migration.Migrated(), "failed", result.Migration.ErrorCount())
}

// retireLegacy deletes the legacy record once no reference is left pointing at
// it. A failed delete only leaves an inert orphan behind.
func (r *Resolver) retireLegacy(ctx context.Context, key string, result *Result) {
	if result.Migration.Failed() {
		r.log.Warn("legacy record kept until references are migrated",
			"key", key, "legacy_key", result.LegacyKey, "run_id", result.Migration.RunID,
			"failed", result.Migration.ErrorCount())
		return
	}
	if err := r.store.DeleteUser(ctx, result.LegacyKey); err != nil {
		result.LegacyDeleteErr = &caseload.LegacyDeletionError{Key: result.LegacyKey, Err: err}
		r.log.Warn("legacy record not deleted", "key", key, "legacy_key", result.LegacyKey, "error", err)
	}
}

func (r *Resolver) resolveFirstTime(ctx context.Context, event caseload.IdentityEvent) (*Result, error) {
	role, title := r.defaultRole, ""
	name := strings.TrimSpace(event.DisplayName)
	if entry, ok := r.bootstrapEntry(event.Email); ok {
		role, title = entry.Role, entry.Title
		if name == "" {
			name = entry.Name
		}
	}
	if name == "" {
		name = event.Name()
	}

	user := caseload.User{
		Key:       event.ProviderKey,
		Name:      name,
		Email:     event.Email,
		Role:      role,
		Title:     title,
		CreatedAt: caseload.Millis(r.now()),
	}
	stored, created, err := r.store.PutUserIfAbsent(ctx, user)
	if err != nil {
		return nil, caseload.Unavailable("create canonical user", err)
	}

	path := PathCreated
	if !created {
		// a concurrent resolution for the same key won the write
		path = PathExisting
	}
	r.log.Info("resolved first-time identity", "key", stored.Key, "role", stored.Role.String(), "created", created)
	return &Result{Identity: caseload.IdentityFromUser(stored.MergeMissing(user)), Path: path}, nil
}

func (r *Resolver) resolveLegacy(ctx context.Context, event caseload.IdentityEvent, candidates []caseload.User) (*Result, error) {
	result := &Result{Path: PathMigrated}
	if len(candidates) > 1 {
		for _, c := range candidates {
			result.AmbiguousKeys = append(result.AmbiguousKeys, c.Key)
		}
		if r.strictLegacyMatch {
			return nil, &caseload.AmbiguousMatchError{Email: event.Email, Keys: result.AmbiguousKeys}
		}
		r.log.Warn("several legacy records share an email, migrating the oldest",
			"key", event.ProviderKey, "legacy_keys", result.AmbiguousKeys)
	}

	legacy := candidates[0]
	result.LegacyKey = legacy.Key
	result.Migration = r.migrator.Migrate(ctx, legacy.Key, event.ProviderKey)

	role, title := r.defaultRole, ""
	switch entry, ok := r.bootstrapEntry(event.Email); {
	case legacy.Role.Valid():
		role, title = legacy.Role, legacy.Title
	case ok:
		role, title = entry.Role, entry.Title
	}
	name := strings.TrimSpace(event.DisplayName)
	if name == "" {
		name = legacy.Name
	}
	if name == "" {
		name = event.Name()
	}

	now := caseload.Millis(r.now())
	user := caseload.User{
		Key:          event.ProviderKey,
		Name:         name,
		Email:        event.Email,
		Role:         role,
		Title:        title,
		CreatedAt:    now,
		MigratedFrom: legacy.Key,
		MigratedAt:   now,
	}
	stored, created, err := r.store.PutUserIfAbsent(ctx, user)
	if err != nil {
		return nil, caseload.Unavailable("create migrated user", err)
	}
	result.Identity = caseload.IdentityFromUser(stored.MergeMissing(user))
	if !created {
		// a concurrent resolution for the same key won the write
		result.Path = PathExisting
	}

	r.retireLegacy(ctx, event.ProviderKey, result)

	r.log.Info("migrated legacy identity",
		"key", stored.Key, "legacy_key", legacy.Key, "role", stored.Role.String(),
		"created", created, "migrated", result.Migration.Migrated())
	return result, nil
}
