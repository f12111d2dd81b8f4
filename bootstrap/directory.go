// Package bootstrap holds the statically configured email to role/title seed table
// consulted only for people who have no canonical record yet.
package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kubex/caseload-identity/caseload"
)

// Directory is read-only after construction and safe for concurrent use.
type Directory struct {
	entries map[string]caseload.BootstrapEntry
}

func New(entries ...caseload.BootstrapEntry) (*Directory, error) {
	d := &Directory{entries: make(map[string]caseload.BootstrapEntry, len(entries))}
	for _, entry := range entries {
		fold := caseload.NormalizeEmail(entry.Email)
		if fold == "" {
			return nil, errors.New("bootstrap entry without email")
		}
		role, err := caseload.ParseRole(string(entry.Role))
		if err != nil {
			return nil, fmt.Errorf("bootstrap entry %s: %w", entry.Email, err)
		}
		entry.Role = role
		if _, dup := d.entries[fold]; dup {
			return nil, fmt.Errorf("bootstrap entry %s: %w", entry.Email, caseload.ErrDuplicate)
		}
		d.entries[fold] = entry
	}
	return d, nil
}

// Empty returns a directory with no entries.
func Empty() *Directory {
	return &Directory{entries: map[string]caseload.BootstrapEntry{}}
}

// FromJson accepts either a bare array of entries or {"entries": [...]}. Any
// other object is rejected so a misspelled key cannot yield an empty directory.
func FromJson(data []byte) (*Directory, error) {
	var entries []caseload.BootstrapEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		var wrapped map[string]json.RawMessage
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("unable to decode bootstrap json: %w", err)
		}
		raw, ok := wrapped["entries"]
		if !ok || len(wrapped) != 1 {
			return nil, errors.New("unable to decode bootstrap json: expected an array or an object with only an \"entries\" key")
		}
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("unable to decode bootstrap json: %w", err)
		}
	}
	return New(entries...)
}

func FromFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load bootstrap directory @ %s: %w", path, err)
	}
	return FromJson(data)
}

func (d *Directory) Lookup(email string) (caseload.BootstrapEntry, bool) {
	if d == nil {
		return caseload.BootstrapEntry{}, false
	}
	entry, ok := d.entries[caseload.NormalizeEmail(email)]
	return entry, ok
}

func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
