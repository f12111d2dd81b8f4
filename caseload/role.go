package caseload

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin   Role = "admin"   // full access
	RoleStaff   Role = "staff"   // case work
	RoleViewer  Role = "viewer"  // read only
	RolePending Role = "pending" // awaiting approval
)

// DefaultRole is granted to identities with neither a legacy record nor a bootstrap entry.
const DefaultRole = RoleViewer

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleViewer, RolePending:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

func ParseRole(in string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(in)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", in)
	}
	return r, nil
}
