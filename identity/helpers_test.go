package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kubex/caseload-identity/bootstrap"
	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/storage/memory"
)

var (
	errInjected = errors.New("injected failure")
	testNow     = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
)

func testClock() time.Time { return testNow }

// faultyStore wraps the memory store and fails selected operations.
type faultyStore struct {
	*memory.Provider

	mu        sync.Mutex
	getErr    error
	putErr    error
	deleteErr error
	findErr   map[caseload.Reference]error
	setErr    map[string]error // record id -> error
	setDelay  time.Duration
	inFlight  int32
	maxFlight int32
	setCalls  int32
	beforeSet func(ref caseload.Reference, recordID string)
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Provider: memory.New(),
		findErr:  map[caseload.Reference]error{},
		setErr:   map[string]error{},
	}
}

func (s *faultyStore) GetUser(ctx context.Context, key string) (*caseload.User, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.Provider.GetUser(ctx, key)
}

func (s *faultyStore) PutUserIfAbsent(ctx context.Context, user caseload.User) (*caseload.User, bool, error) {
	if s.putErr != nil {
		return nil, false, s.putErr
	}
	return s.Provider.PutUserIfAbsent(ctx, user)
}

func (s *faultyStore) DeleteUser(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Provider.DeleteUser(ctx, key)
}

func (s *faultyStore) FindReferencing(ctx context.Context, ref caseload.Reference, key string) ([]string, error) {
	s.mu.Lock()
	err := s.findErr[ref]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Provider.FindReferencing(ctx, ref, key)
}

func (s *faultyStore) SetReference(ctx context.Context, ref caseload.Reference, recordID, oldKey, newKey string) (bool, error) {
	atomic.AddInt32(&s.setCalls, 1)
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.maxFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&s.maxFlight, peak, n) {
			break
		}
	}
	if s.setDelay > 0 {
		time.Sleep(s.setDelay)
	}
	if s.beforeSet != nil {
		s.beforeSet(ref, recordID)
	}
	s.mu.Lock()
	err := s.setErr[recordID]
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.Provider.SetReference(ctx, ref, recordID, oldKey, newKey)
}

func (s *faultyStore) clearSetErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = map[string]error{}
}

func directory(t *testing.T, entries ...caseload.BootstrapEntry) *bootstrap.Directory {
	t.Helper()
	d, err := bootstrap.New(entries...)
	if err != nil {
		t.Fatalf("bootstrap.New: %v", err)
	}
	return d
}

func seedUser(t *testing.T, store Store, user caseload.User) {
	t.Helper()
	if _, created, err := store.PutUserIfAbsent(context.Background(), user); err != nil || !created {
		t.Fatalf("seed user %s: created=%v err=%v", user.Key, created, err)
	}
}

type recordStore interface {
	StoreRecord(ctx context.Context, record caseload.Record) error
	RetrieveRecord(ctx context.Context, collection, id string) (*caseload.Record, error)
}

func seedRecord(t *testing.T, store recordStore, collection, id string, fields map[string]string) {
	t.Helper()
	err := store.StoreRecord(context.Background(), caseload.Record{Collection: collection, ID: id, Fields: fields})
	if err != nil {
		t.Fatalf("seed record %s/%s: %v", collection, id, err)
	}
}

func fieldOf(t *testing.T, store recordStore, collection, id, field string) string {
	t.Helper()
	rec, err := store.RetrieveRecord(context.Background(), collection, id)
	if err != nil {
		t.Fatalf("retrieve %s/%s: %v", collection, id, err)
	}
	return rec.Fields[field]
}
