package mysql

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/storage/storagetest"
)

// newTestProvider needs CASELOAD_MYSQL_DSN (user:password@tcp(host:port)) and an
// empty database named by CASELOAD_MYSQL_DATABASE, defaulting to caseload_test.
func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	dsn := os.Getenv("CASELOAD_MYSQL_DSN")
	if dsn == "" {
		t.Skip("set CASELOAD_MYSQL_DSN to run mysql integration tests")
	}
	database := os.Getenv("CASELOAD_MYSQL_DATABASE")
	if database == "" {
		database = "caseload_test"
	}
	p := &Provider{PrimaryDSN: dsn, Database: database}
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("init provider: %v", err)
	}
	for _, table := range append([]string{"users"}, collections()...) {
		if _, err := p.primaryConnection.Exec("DELETE FROM `" + table + "`"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestIntegration_MySQL(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store { return newTestProvider(t) })
}

func TestInitializeIsRepeatable(t *testing.T) {
	p := newTestProvider(t)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
}

func TestMigrationKeysAreStable(t *testing.T) {
	first := migrations()
	second := migrations()
	if len(first) != len(second) {
		t.Fatalf("migration count changed: %d vs %d", len(first), len(second))
	}
	seen := map[string]bool{}
	for i := range first {
		if first[i].key != second[i].key {
			t.Errorf("migration %d key changed: %s vs %s", i, first[i].key, second[i].key)
		}
		if seen[first[i].key] {
			t.Errorf("duplicate migration key %s", first[i].key)
		}
		seen[first[i].key] = true
	}
	// users table, its index, and one table per dependent collection
	if !strings.Contains(first[0].query, "create table users") {
		t.Errorf("first migration should create users, got %s", first[0].query)
	}
	for _, collection := range []string{"clients", "tasks", "case_notes", "workshops"} {
		found := false
		for _, m := range first {
			if strings.Contains(m.query, "create table `"+collection+"`") {
				found = true
			}
		}
		if !found {
			t.Errorf("no table migration for %s", collection)
		}
	}
}

func TestKnownField(t *testing.T) {
	testCases := []struct {
		collection, field string
		known             bool
	}{
		{"clients", "audit_admin_id", true},
		{"clients", "audit_last_modified_by", true},
		{"tasks", "assignee", true},
		{"tasks", "author", false},
		{"users; drop table users", "x", false},
	}
	for _, tc := range testCases {
		if got := knownField(tc.collection, tc.field); got != tc.known {
			t.Errorf("knownField(%q, %q) = %v", tc.collection, tc.field, got)
		}
	}
}

func TestNotConnected(t *testing.T) {
	p := &Provider{}
	if _, err := p.FindReferencing(context.Background(), caseload.RefTaskAssignee, "U1"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestIsDuplicateConflict(t *testing.T) {
	if !isDuplicateConflict(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}) {
		t.Error("1062 is a duplicate")
	}
	if isDuplicateConflict(&mysql.MySQLError{Number: 1146}) || isDuplicateConflict(nil) {
		t.Error("only 1062 is a duplicate")
	}
}

func TestFromJson(t *testing.T) {
	p, err := FromJson([]byte(`{"primaryDsn":"root@tcp(localhost:3306)", "database":"caseload"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.PrimaryDSN != "root@tcp(localhost:3306)" || p.Database != "caseload" {
		t.Fatalf("unexpected provider %+v", p)
	}
}
