package caseload

import (
	"fmt"
	"strings"
)

// IdentityEvent is emitted by the identity provider adapter once per authentication.
type IdentityEvent struct {
	ProviderKey string `json:"providerKey"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

func (e IdentityEvent) Validate() error {
	if strings.TrimSpace(e.ProviderKey) == "" {
		return fmt.Errorf("%w: missing provider key", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Email) == "" {
		return fmt.Errorf("%w: missing email", ErrInvalidEvent)
	}
	return nil
}

// Name returns the display name, falling back to the local part of the email.
func (e IdentityEvent) Name() string {
	if n := strings.TrimSpace(e.DisplayName); n != "" {
		return n
	}
	return emailLocalPart(e.Email)
}

// ResolvedIdentity is handed to the session layer after resolution.
type ResolvedIdentity struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Title string `json:"title,omitempty"`
}

func IdentityFromUser(u User) ResolvedIdentity {
	return ResolvedIdentity{
		Key:   u.Key,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
		Title: u.Title,
	}
}

// BootstrapEntry seeds the role and title of a person who has no canonical record yet.
type BootstrapEntry struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Title string `json:"title,omitempty"`
	Name  string `json:"name,omitempty"`
}
