package identity

import (
	"context"

	"github.com/kubex/caseload-identity/caseload"
)

// UserStore is the canonical user store accessor.
type UserStore interface {
	GetUser(ctx context.Context, key string) (*caseload.User, error)
	PutUserIfAbsent(ctx context.Context, user caseload.User) (*caseload.User, bool, error)
	DeleteUser(ctx context.Context, key string) error
	FindUsersByEmail(ctx context.Context, email string) ([]caseload.User, error)
}

type ReferenceStore interface {
	FindReferencing(ctx context.Context, ref caseload.Reference, key string) ([]string, error)
	SetReference(ctx context.Context, ref caseload.Reference, recordID, oldKey, newKey string) (bool, error)
}

type Store interface {
	UserStore
	ReferenceStore
}

// Directory is the bootstrap role directory.
type Directory interface {
	Lookup(email string) (caseload.BootstrapEntry, bool)
}
