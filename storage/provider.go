package storage

import (
	"context"

	"github.com/kubex/caseload-identity/caseload"
)

type Provider interface {
	GetUser(ctx context.Context, key string) (*caseload.User, error)
	// PutUserIfAbsent writes user unless a record already exists at user.Key, and returns
	// whatever is stored once the call completes. created is false when another writer won.
	PutUserIfAbsent(ctx context.Context, user caseload.User) (stored *caseload.User, created bool, err error)
	DeleteUser(ctx context.Context, key string) error
	FindUsersByEmail(ctx context.Context, email string) ([]caseload.User, error)

	FindReferencing(ctx context.Context, ref caseload.Reference, key string) ([]string, error)
	// SetReference rewrites ref on one record only while it still holds oldKey.
	SetReference(ctx context.Context, ref caseload.Reference, recordID, oldKey, newKey string) (bool, error)

	StoreRecord(ctx context.Context, record caseload.Record) error
	RetrieveRecord(ctx context.Context, collection, id string) (*caseload.Record, error)

	Connect() error
	Close() error
}
