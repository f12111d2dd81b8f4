// Package memory is an in-process store with the same semantics as the hosted backends.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kubex/caseload-identity/caseload"
)

const ProviderKey = "memory"

type Provider struct {
	mu      sync.RWMutex
	users   map[string]caseload.User
	records map[string]map[string]map[string]string // collection -> id -> fields
}

func New() *Provider {
	return &Provider{
		users:   map[string]caseload.User{},
		records: map[string]map[string]map[string]string{},
	}
}

func (p *Provider) Connect() error { return nil }
func (p *Provider) Close() error   { return nil }

func (p *Provider) GetUser(ctx context.Context, key string) (*caseload.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[key]
	if !ok {
		return nil, caseload.ErrNotFound
	}
	return &u, nil
}

func (p *Provider) PutUserIfAbsent(ctx context.Context, user caseload.User) (*caseload.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.users[user.Key]; ok {
		return &existing, false, nil
	}
	p.users[user.Key] = user
	return &user, true, nil
}

func (p *Provider) DeleteUser(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, key)
	return nil
}

func (p *Provider) FindUsersByEmail(ctx context.Context, email string) ([]caseload.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fold := caseload.NormalizeEmail(email)
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []caseload.User
	for _, u := range p.users {
		if u.EmailFold() == fold {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (p *Provider) FindReferencing(ctx context.Context, ref caseload.Reference, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ids []string
	for id, fields := range p.records[ref.Collection] {
		if fields[ref.Field] == key {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *Provider) SetReference(ctx context.Context, ref caseload.Reference, recordID, oldKey, newKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fields, ok := p.records[ref.Collection][recordID]
	if !ok {
		return false, caseload.ErrNotFound
	}
	if fields[ref.Field] != oldKey {
		return false, nil
	}
	fields[ref.Field] = newKey
	return true, nil
}

func (p *Provider) StoreRecord(ctx context.Context, record caseload.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	coll, ok := p.records[record.Collection]
	if !ok {
		coll = map[string]map[string]string{}
		p.records[record.Collection] = coll
	}
	fields := make(map[string]string, len(record.Fields))
	for k, v := range record.Fields {
		fields[k] = v
	}
	coll[record.ID] = fields
	return nil
}

func (p *Provider) RetrieveRecord(ctx context.Context, collection, id string) (*caseload.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	fields, ok := p.records[collection][id]
	if !ok {
		return nil, caseload.ErrNotFound
	}
	rec := &caseload.Record{Collection: collection, ID: id, Fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	return rec, nil
}
