// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/kubex/caseload-identity/caseload"
)

// Store mirrors storage.Provider without importing it, so backend packages can
// run the suite from their own tests.
type Store interface {
	GetUser(ctx context.Context, key string) (*caseload.User, error)
	PutUserIfAbsent(ctx context.Context, user caseload.User) (*caseload.User, bool, error)
	DeleteUser(ctx context.Context, key string) error
	FindUsersByEmail(ctx context.Context, email string) ([]caseload.User, error)
	FindReferencing(ctx context.Context, ref caseload.Reference, key string) ([]string, error)
	SetReference(ctx context.Context, ref caseload.Reference, recordID, oldKey, newKey string) (bool, error)
	StoreRecord(ctx context.Context, record caseload.Record) error
	RetrieveRecord(ctx context.Context, collection, id string) (*caseload.Record, error)
}

// Run exercises a fresh, empty store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UserRoundTrip", func(t *testing.T) { testUserRoundTrip(t, newStore(t)) })
	t.Run("PutUserIfAbsent", func(t *testing.T) { testPutUserIfAbsent(t, newStore(t)) })
	t.Run("ConcurrentPut", func(t *testing.T) { testConcurrentPut(t, newStore(t)) })
	t.Run("FindUsersByEmail", func(t *testing.T) { testFindUsersByEmail(t, newStore(t)) })
	t.Run("DeleteUser", func(t *testing.T) { testDeleteUser(t, newStore(t)) })
	t.Run("References", func(t *testing.T) { testReferences(t, newStore(t)) })
}

func testUserRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	want := caseload.User{
		Key:          "NEW1",
		Name:         "Ana Lee",
		Email:        "Ana.Lee@Workforce.example",
		Role:         caseload.RoleStaff,
		Title:        "Case Manager",
		CreatedAt:    1717000000123,
		MigratedFrom: "OLD1",
		MigratedAt:   1717000000456,
	}
	if _, created, err := s.PutUserIfAbsent(ctx, want); err != nil || !created {
		t.Fatalf("PutUserIfAbsent: created=%v err=%v", created, err)
	}
	got, err := s.GetUser(ctx, "NEW1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !reflect.DeepEqual(*got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", *got, want)
	}

	minimal := caseload.User{Key: "U2", Name: "B", Email: "b@x.com", Role: caseload.RoleViewer, CreatedAt: 1}
	if _, _, err := s.PutUserIfAbsent(ctx, minimal); err != nil {
		t.Fatalf("PutUserIfAbsent minimal: %v", err)
	}
	if got, err := s.GetUser(ctx, "U2"); err != nil || !reflect.DeepEqual(*got, minimal) {
		t.Fatalf("minimal round trip: %+v err=%v", got, err)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, caseload.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testPutUserIfAbsent(t *testing.T, s Store) {
	ctx := context.Background()
	first := caseload.User{Key: "U3", Name: "C", Email: "c@x.com", Role: caseload.RoleViewer, CreatedAt: 100}
	if _, created, err := s.PutUserIfAbsent(ctx, first); err != nil || !created {
		t.Fatalf("first put: created=%v err=%v", created, err)
	}
	second := first
	second.Role = caseload.RoleAdmin
	second.CreatedAt = 200
	stored, created, err := s.PutUserIfAbsent(ctx, second)
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if created {
		t.Fatal("second put must not report creation")
	}
	if stored.Role != caseload.RoleViewer || stored.CreatedAt != 100 {
		t.Fatalf("existing record was overwritten: %+v", stored)
	}
}

func testConcurrentPut(t *testing.T, s Store) {
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := caseload.User{Key: "RACE", Name: "R", Email: "r@x.com", Role: caseload.RoleViewer, CreatedAt: int64(i + 1)}
			_, ok, err := s.PutUserIfAbsent(ctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				created++
			}
		}(i)
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatalf("concurrent puts failed: %v", errs)
	}
	if created != 1 {
		t.Fatalf("expected exactly one creation, got %d", created)
	}
}

func testFindUsersByEmail(t *testing.T, s Store) {
	ctx := context.Background()
	for _, u := range []caseload.User{
		{Key: "L1", Name: "L", Email: "Legacy@X.com", Role: caseload.RoleStaff, CreatedAt: 1},
		{Key: "L2", Name: "L", Email: "legacy@x.com", Role: caseload.RoleViewer, CreatedAt: 2},
		{Key: "O1", Name: "O", Email: "other@x.com", Role: caseload.RoleViewer, CreatedAt: 3},
	} {
		if _, _, err := s.PutUserIfAbsent(ctx, u); err != nil {
			t.Fatalf("seed %s: %v", u.Key, err)
		}
	}
	found, err := s.FindUsersByEmail(ctx, "LEGACY@x.COM")
	if err != nil {
		t.Fatalf("FindUsersByEmail: %v", err)
	}
	keys := map[string]bool{}
	for _, u := range found {
		keys[u.Key] = true
	}
	if len(found) != 2 || !keys["L1"] || !keys["L2"] {
		t.Fatalf("unexpected matches %+v", found)
	}
	if none, err := s.FindUsersByEmail(ctx, "nobody@x.com"); err != nil || len(none) != 0 {
		t.Fatalf("expected no matches, got %+v err=%v", none, err)
	}
}

func testDeleteUser(t *testing.T, s Store) {
	ctx := context.Background()
	if _, _, err := s.PutUserIfAbsent(ctx, caseload.User{Key: "D1", Name: "D", Email: "d@x.com", Role: caseload.RoleViewer, CreatedAt: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.DeleteUser(ctx, "D1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetUser(ctx, "D1"); !errors.Is(err, caseload.ErrNotFound) {
		t.Fatalf("expected deleted user to be gone, got %v", err)
	}
	if found, _ := s.FindUsersByEmail(ctx, "d@x.com"); len(found) != 0 {
		t.Fatalf("deleted user still indexed: %+v", found)
	}
	if err := s.DeleteUser(ctx, "D1"); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
}

func testReferences(t *testing.T, s Store) {
	ctx := context.Background()
	seed := []caseload.Record{
		{Collection: caseload.CollectionTasks, ID: "t1", Fields: map[string]string{"assignee": "OLD1"}},
		{Collection: caseload.CollectionTasks, ID: "t2", Fields: map[string]string{"assignee": "OLD1"}},
		{Collection: caseload.CollectionTasks, ID: "t3", Fields: map[string]string{"assignee": "SOMEONE"}},
		{Collection: caseload.CollectionClients, ID: "c1", Fields: map[string]string{
			"audit_admin_id": "OLD1", "audit_created_by": "OLD1", "audit_last_modified_by": "X",
		}},
	}
	for _, rec := range seed {
		if err := s.StoreRecord(ctx, rec); err != nil {
			t.Fatalf("StoreRecord %s/%s: %v", rec.Collection, rec.ID, err)
		}
	}

	ids, err := s.FindReferencing(ctx, caseload.RefTaskAssignee, "OLD1")
	if err != nil {
		t.Fatalf("FindReferencing: %v", err)
	}
	if fmt.Sprint(sorted(ids)) != "[t1 t2]" {
		t.Fatalf("unexpected ids %v", ids)
	}

	changed, err := s.SetReference(ctx, caseload.RefTaskAssignee, "t1", "OLD1", "NEW1")
	if err != nil || !changed {
		t.Fatalf("SetReference: changed=%v err=%v", changed, err)
	}
	changed, err = s.SetReference(ctx, caseload.RefTaskAssignee, "t1", "OLD1", "NEW1")
	if err != nil || changed {
		t.Fatalf("repeat SetReference should be a no-op: changed=%v err=%v", changed, err)
	}
	if changed, err := s.SetReference(ctx, caseload.RefTaskAssignee, "t3", "OLD1", "NEW1"); err != nil || changed {
		t.Fatalf("SetReference must not touch other keys: changed=%v err=%v", changed, err)
	}

	if ids, _ := s.FindReferencing(ctx, caseload.RefTaskAssignee, "OLD1"); fmt.Sprint(ids) != "[t2]" {
		t.Fatalf("expected only t2 left, got %v", ids)
	}
	if ids, _ := s.FindReferencing(ctx, caseload.RefTaskAssignee, "NEW1"); fmt.Sprint(ids) != "[t1]" {
		t.Fatalf("expected t1 under new key, got %v", ids)
	}

	if _, err := s.SetReference(ctx, caseload.RefClientAdmin, "c1", "OLD1", "NEW1"); err != nil {
		t.Fatalf("SetReference client: %v", err)
	}
	rec, err := s.RetrieveRecord(ctx, caseload.CollectionClients, "c1")
	if err != nil {
		t.Fatalf("RetrieveRecord: %v", err)
	}
	if rec.Fields["audit_admin_id"] != "NEW1" || rec.Fields["audit_created_by"] != "OLD1" || rec.Fields["audit_last_modified_by"] != "X" {
		t.Fatalf("unexpected client fields %v", rec.Fields)
	}

	if _, err := s.RetrieveRecord(ctx, caseload.CollectionWorkshops, "missing"); !errors.Is(err, caseload.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
