package caseload

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeEmail returns the case-folded form used for every email comparison.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// EmailEqual reports whether two addresses match case-insensitively.
func EmailEqual(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
