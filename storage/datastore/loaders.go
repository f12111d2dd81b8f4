package datastore

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/datastore"
	"github.com/kubex/caseload-identity/caseload"
)

func (p *Provider) GetUser(ctx context.Context, key string) (*caseload.User, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	us := &userStore{}
	if readErr := client.Get(ctx, p.key(kindUser, key), us); readErr != nil {
		return nil, mapErr(readErr)
	}
	us.Key = key
	u := us.user()
	return &u, nil
}

func (p *Provider) PutUserIfAbsent(ctx context.Context, user caseload.User) (*caseload.User, bool, error) {
	client, err := p.conn()
	if err != nil {
		return nil, false, err
	}

	dsKey := p.key(kindUser, user.Key)
	var (
		stored  caseload.User
		created bool
	)
	_, err = client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		created = false
		existing := &userStore{}
		getErr := tx.Get(dsKey, existing)
		if getErr == nil {
			existing.Key = user.Key
			stored = existing.user()
			return nil
		}
		if !errors.Is(getErr, datastore.ErrNoSuchEntity) {
			return getErr
		}
		if _, putErr := tx.Put(dsKey, userStoreFrom(user)); putErr != nil {
			return putErr
		}
		stored = user
		created = true
		return nil
	})
	if errors.Is(err, datastore.ErrConcurrentTransaction) {
		// another writer committed first
		winner, getErr := p.GetUser(ctx, user.Key)
		if getErr != nil {
			return nil, false, getErr
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

func (p *Provider) DeleteUser(ctx context.Context, key string) error {
	client, err := p.conn()
	if err != nil {
		return err
	}
	return client.Delete(ctx, p.key(kindUser, key))
}

func (p *Provider) FindUsersByEmail(ctx context.Context, email string) ([]caseload.User, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	q := p.query(kindUser).
		Filter("email_fold =", caseload.NormalizeEmail(email))

	var rows []userStore
	keys, err := client.GetAll(ctx, q, &rows)
	if err != nil {
		return nil, err
	}
	users := make([]caseload.User, 0, len(rows))
	for i, row := range rows {
		row.Key = keys[i].Name
		users = append(users, row.user())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Key < users[j].Key })
	return users, nil
}

func (p *Provider) FindReferencing(ctx context.Context, ref caseload.Reference, key string) ([]string, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	q := p.query(ref.Collection).
		Filter(ref.Field+" =", key).
		KeysOnly()

	keys, err := client.GetAll(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.Name)
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *Provider) SetReference(ctx context.Context, ref caseload.Reference, recordID, oldKey, newKey string) (bool, error) {
	client, err := p.conn()
	if err != nil {
		return false, err
	}
	dsKey := p.key(ref.Collection, recordID)
	changed := false
	_, err = client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		changed = false
		var props datastore.PropertyList
		if getErr := tx.Get(dsKey, &props); getErr != nil {
			return getErr
		}
		if !rewriteProperty(props, ref.Field, oldKey, newKey) {
			return nil
		}
		if _, putErr := tx.Put(dsKey, &props); putErr != nil {
			return putErr
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, mapErr(err)
	}
	return changed, nil
}

func (p *Provider) StoreRecord(ctx context.Context, record caseload.Record) error {
	client, err := p.conn()
	if err != nil {
		return err
	}
	props := recordProperties(record.Fields)
	_, err = client.Put(ctx, p.key(record.Collection, record.ID), &props)
	return err
}

func (p *Provider) RetrieveRecord(ctx context.Context, collection, id string) (*caseload.Record, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	var props datastore.PropertyList
	if readErr := client.Get(ctx, p.key(collection, id), &props); readErr != nil {
		return nil, mapErr(readErr)
	}
	return &caseload.Record{Collection: collection, ID: id, Fields: recordFields(props)}, nil
}
