package caseload

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("no result found")
	ErrDuplicate            = errors.New("already exists")
	ErrInvalidEvent         = errors.New("invalid identity event")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrPartialMigration     = errors.New("partial migration failure")
	ErrLegacyDeletion       = errors.New("legacy deletion failure")
	ErrAmbiguousLegacyMatch = errors.New("ambiguous legacy match")
)

// StoreError aborts a resolution. The whole call is safe to retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// RecordError is a single failed step of a reference migration.
type RecordError struct {
	Reference Reference
	RecordID  string // empty when the lookup itself failed
	Err       error
}

func (e *RecordError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s: query: %v", e.Reference, e.Err)
	}
	return fmt.Sprintf("%s[%s]: %v", e.Reference, e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

type PartialMigrationError struct {
	Report *MigrationReport
}

func (e *PartialMigrationError) Error() string {
	return fmt.Sprintf("migration %s -> %s: %d reference updates failed",
		e.Report.OldKey, e.Report.NewKey, e.Report.ErrorCount())
}

func (e *PartialMigrationError) Is(target error) bool { return target == ErrPartialMigration }

func (e *PartialMigrationError) Unwrap() []error { return e.Report.AllErrors() }

// LegacyDeletionError reports a legacy record left behind after migration.
type LegacyDeletionError struct {
	Key string
	Err error
}

func (e *LegacyDeletionError) Error() string {
	return fmt.Sprintf("delete legacy record %s: %v", e.Key, e.Err)
}

func (e *LegacyDeletionError) Unwrap() error { return e.Err }

func (e *LegacyDeletionError) Is(target error) bool { return target == ErrLegacyDeletion }

type AmbiguousMatchError struct {
	Email string
	Keys  []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d legacy records share one email: %v", len(e.Keys), e.Keys)
}

func (e *AmbiguousMatchError) Is(target error) bool { return target == ErrAmbiguousLegacyMatch }
