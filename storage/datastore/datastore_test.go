package datastore

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/storage/storagetest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TestDataStore runs against the emulator: gcloud beta emulators datastore start
func TestDataStore(t *testing.T) {
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("set DATASTORE_EMULATOR_HOST to run datastore integration tests")
	}
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		p := &Provider{ProjectID: "test-project", Namespace: "it-" + uuid.NewString()}
		if err := p.Connect(); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		t.Cleanup(func() { _ = p.Close() })
		return p
	})
}

func TestUserStoreRoundTrip(t *testing.T) {
	u := caseload.User{
		Key: "NEW1", Name: "Ana", Email: "Ana@X.com", Role: caseload.RoleAdmin, Title: "Director",
		CreatedAt: 1, MigratedFrom: "OLD1", MigratedAt: 2,
	}
	s := userStoreFrom(u)
	if s.EmailFold != "ana@x.com" {
		t.Errorf("expected folded email, got %q", s.EmailFold)
	}
	if got := s.user(); !reflect.DeepEqual(got, u) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestRecordProperties(t *testing.T) {
	fields := map[string]string{"audit_created_by": "OLD1", "audit_admin_id": "OLD1"}
	props := recordProperties(fields)
	if len(props) != 2 || props[0].Name != "audit_admin_id" {
		t.Fatalf("unexpected properties %+v", props)
	}
	if !rewriteProperty(props, "audit_admin_id", "OLD1", "NEW1") {
		t.Fatal("expected rewrite")
	}
	if rewriteProperty(props, "audit_admin_id", "OLD1", "NEW1") {
		t.Fatal("rewrite must be conditional on the old value")
	}
	if rewriteProperty(props, "missing", "OLD1", "NEW1") {
		t.Fatal("rewrite of an absent property")
	}
	got := recordFields(append(props, datastore.Property{Name: "count", Value: int64(3)}))
	if got["audit_admin_id"] != "NEW1" || got["audit_created_by"] != "OLD1" || len(got) != 2 {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestMapErr(t *testing.T) {
	if !errors.Is(mapErr(datastore.ErrNoSuchEntity), caseload.ErrNotFound) {
		t.Error("ErrNoSuchEntity should map to ErrNotFound")
	}
	if !errors.Is(mapErr(status.Error(codes.NotFound, "gone")), caseload.ErrNotFound) {
		t.Error("grpc NotFound should map to ErrNotFound")
	}
	unavailable := status.Error(codes.Unavailable, "down")
	if mapErr(unavailable) != unavailable {
		t.Error("other errors pass through")
	}
	if mapErr(nil) != nil {
		t.Error("nil stays nil")
	}
}

func TestNotConnected(t *testing.T) {
	p, err := FromJson([]byte(`{"projectId":"p","namespace":"ns"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.ProjectID != "p" || p.Namespace != "ns" {
		t.Fatalf("unexpected config %+v", p)
	}
	if _, err := p.GetUser(context.Background(), "U1"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
