package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/storage/storagetest"
)

func TestProvider(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store { return New() })
}

func TestCanceledContext(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.GetUser(ctx, "U1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if _, err := p.SetReference(ctx, caseload.RefTaskAssignee, "t1", "a", "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestStoreRecordCopiesFields(t *testing.T) {
	p := New()
	fields := map[string]string{"owner": "U1"}
	if err := p.StoreRecord(context.Background(), caseload.Record{Collection: caseload.CollectionWorkshops, ID: "w1", Fields: fields}); err != nil {
		t.Fatal(err)
	}
	fields["owner"] = "U2"
	rec, err := p.RetrieveRecord(context.Background(), caseload.CollectionWorkshops, "w1")
	if err != nil || rec.Fields["owner"] != "U1" {
		t.Fatalf("stored record aliased caller map: %+v err=%v", rec, err)
	}
}
