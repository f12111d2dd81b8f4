package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/kubex/caseload-identity/caseload"
	"github.com/redis/go-redis/v9"
)

// KEYS: user, email index. ARGV: encoded user, user key.
var putIfAbsentScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 1 then
	redis.call('SADD', KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// KEYS: record hash, old ref index, new ref index. ARGV: field, old value, new value, record id.
var setReferenceScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('HGET', KEYS[1], ARGV[1]) ~= ARGV[2] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('SREM', KEYS[2], ARGV[4])
redis.call('SADD', KEYS[3], ARGV[4])
return 1
`)

func (p *Provider) GetUser(ctx context.Context, key string) (*caseload.User, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	raw, err := client.Get(ctx, p.userKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, caseload.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	u := &caseload.User{}
	if err := json.Unmarshal(raw, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Provider) PutUserIfAbsent(ctx context.Context, user caseload.User) (*caseload.User, bool, error) {
	client, err := p.conn()
	if err != nil {
		return nil, false, err
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return nil, false, err
	}
	res, err := putIfAbsentScript.Run(ctx, client,
		[]string{p.userKey(user.Key), p.emailIndexKey(user.EmailFold())},
		string(raw), user.Key).Int()
	if err != nil {
		return nil, false, err
	}
	if res == 1 {
		return &user, true, nil
	}
	existing, err := p.GetUser(ctx, user.Key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (p *Provider) DeleteUser(ctx context.Context, key string) error {
	client, err := p.conn()
	if err != nil {
		return err
	}
	existing, err := p.GetUser(ctx, key)
	if errors.Is(err, caseload.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.userKey(key))
		pipe.SRem(ctx, p.emailIndexKey(existing.EmailFold()), key)
		return nil
	})
	return err
}

func (p *Provider) FindUsersByEmail(ctx context.Context, email string) ([]caseload.User, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	fold := caseload.NormalizeEmail(email)
	keys, err := client.SMembers(ctx, p.emailIndexKey(fold)).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	storeKeys := make([]string, len(keys))
	for i, k := range keys {
		storeKeys[i] = p.userKey(k)
	}
	values, err := client.MGet(ctx, storeKeys...).Result()
	if err != nil {
		return nil, err
	}

	var out []caseload.User
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index entry outlived its user
		}
		var u caseload.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, err
		}
		if u.EmailFold() == fold {
			out = append(out, u)
		}
	}
	return out, nil
}

func (p *Provider) FindReferencing(ctx context.Context, ref caseload.Reference, key string) ([]string, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	ids, err := client.SMembers(ctx, p.refIndexKey(ref.Collection, ref.Field, key)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *Provider) SetReference(ctx context.Context, ref caseload.Reference, recordID, oldKey, newKey string) (bool, error) {
	client, err := p.conn()
	if err != nil {
		return false, err
	}
	res, err := setReferenceScript.Run(ctx, client,
		[]string{
			p.recordKey(ref.Collection, recordID),
			p.refIndexKey(ref.Collection, ref.Field, oldKey),
			p.refIndexKey(ref.Collection, ref.Field, newKey),
		},
		ref.Field, oldKey, newKey, recordID).Int()
	if err != nil {
		return false, err
	}
	switch res {
	case -1:
		return false, caseload.ErrNotFound
	case 1:
		return true, nil
	}
	return false, nil
}

func (p *Provider) StoreRecord(ctx context.Context, record caseload.Record) error {
	client, err := p.conn()
	if err != nil {
		return err
	}
	hashKey := p.recordKey(record.Collection, record.ID)
	previous, err := client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return err
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, value := range previous {
			pipe.SRem(ctx, p.refIndexKey(record.Collection, field, value), record.ID)
		}
		pipe.Del(ctx, hashKey)
		if len(record.Fields) == 0 {
			return nil
		}
		values := make([]interface{}, 0, len(record.Fields)*2)
		for field, value := range record.Fields {
			values = append(values, field, value)
			pipe.SAdd(ctx, p.refIndexKey(record.Collection, field, value), record.ID)
		}
		pipe.HSet(ctx, hashKey, values...)
		return nil
	})
	return err
}

func (p *Provider) RetrieveRecord(ctx context.Context, collection, id string) (*caseload.Record, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	fields, err := client.HGetAll(ctx, p.recordKey(collection, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, caseload.ErrNotFound
	}
	return &caseload.Record{Collection: collection, ID: id, Fields: fields}, nil
}
