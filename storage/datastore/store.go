package datastore

import (
	"errors"
	"sort"

	"cloud.google.com/go/datastore"
	"github.com/kubex/caseload-identity/caseload"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type userStore struct {
	Key          string `datastore:"-"`
	Name         string `datastore:"name,noindex"`
	Email        string `datastore:"email,noindex"`
	EmailFold    string `datastore:"email_fold"`
	Role         string `datastore:"role"`
	Title        string `datastore:"title,noindex"`
	CreatedAt    int64  `datastore:"created_at"`
	MigratedFrom string `datastore:"migrated_from"`
	MigratedAt   int64  `datastore:"migrated_at,noindex"`
}

func userStoreFrom(u caseload.User) *userStore {
	return &userStore{
		Key:          u.Key,
		Name:         u.Name,
		Email:        u.Email,
		EmailFold:    u.EmailFold(),
		Role:         string(u.Role),
		Title:        u.Title,
		CreatedAt:    u.CreatedAt,
		MigratedFrom: u.MigratedFrom,
		MigratedAt:   u.MigratedAt,
	}
}

func (s userStore) user() caseload.User {
	return caseload.User{
		Key:          s.Key,
		Name:         s.Name,
		Email:        s.Email,
		Role:         caseload.Role(s.Role),
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		MigratedFrom: s.MigratedFrom,
		MigratedAt:   s.MigratedAt,
	}
}

// recordProperties orders fields by name so writes are deterministic.
func recordProperties(fields map[string]string) datastore.PropertyList {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	props := make(datastore.PropertyList, 0, len(names))
	for _, name := range names {
		props = append(props, datastore.Property{Name: name, Value: fields[name]})
	}
	return props
}

func recordFields(props datastore.PropertyList) map[string]string {
	fields := make(map[string]string, len(props))
	for _, prop := range props {
		if v, ok := prop.Value.(string); ok {
			fields[prop.Name] = v
		}
	}
	return fields
}

// rewriteProperty swaps name from oldValue to newValue, reporting whether it did.
func rewriteProperty(props datastore.PropertyList, name, oldValue, newValue string) bool {
	for i := range props {
		if props[i].Name != name {
			continue
		}
		if v, ok := props[i].Value.(string); !ok || v != oldValue {
			return false
		}
		props[i].Value = newValue
		return true
	}
	return false
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, datastore.ErrNoSuchEntity) || status.Code(err) == codes.NotFound {
		return caseload.ErrNotFound
	}
	return err
}
