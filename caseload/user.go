package caseload

import "time"

// User is an identity record. The canonical record for a person is keyed by the
// identity provider's stable identifier; legacy records share the shape under a stale key.
type User struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	Title        string `json:"title,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	MigratedFrom string `json:"migratedFrom,omitempty"`
	MigratedAt   int64  `json:"migratedAt,omitempty"`
}

func (u User) Migrated() bool {
	return u.MigratedFrom != ""
}

func (u User) Created() time.Time {
	return time.UnixMilli(u.CreatedAt).UTC()
}

// EmailFold is the indexed form of the user's email.
func (u User) EmailFold() string {
	return NormalizeEmail(u.Email)
}

// MergeMissing fills empty cosmetic fields of u from other. Role, title and
// timestamps already stored on u are never replaced.
func (u User) MergeMissing(other User) User {
	if u.Name == "" {
		u.Name = other.Name
	}
	if u.Email == "" {
		u.Email = other.Email
	}
	if u.Role == "" {
		u.Role = other.Role
		if u.Title == "" {
			u.Title = other.Title
		}
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = other.CreatedAt
	}
	if u.MigratedFrom == "" && other.MigratedFrom != "" {
		u.MigratedFrom = other.MigratedFrom
		u.MigratedAt = other.MigratedAt
	}
	return u
}

// Millis converts t to the epoch millisecond form stored on records.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
