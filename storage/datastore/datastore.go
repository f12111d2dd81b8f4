package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
)

const ProviderKey = "datastore"
const kindUser = "User"

var ErrNotConnected = errors.New("datastore: not connected")

type Provider struct {
	client    dataStoreClient
	ProjectID string `json:"projectId"`
	Namespace string `json:"namespace"`
}

func FromJson(data []byte) (*Provider, error) {
	p := &Provider{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Init() error {
	var err error
	p.client, err = datastore.NewClient(context.Background(), p.ProjectID,
		option.WithGRPCDialOption(grpc.WithReturnConnectionError()),
		option.WithGRPCDialOption(grpc.WithTimeout(time.Second*5)),
		option.WithGRPCDialOption(grpc.WithDisableRetry()))
	return err
}

func (p *Provider) Connect() error {
	if p.client != nil {
		return nil
	}
	return p.Init()
}

func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Provider) conn() (dataStoreClient, error) {
	if p.client == nil {
		return nil, ErrNotConnected
	}
	return p.client, nil
}

func (p *Provider) key(kind, name string) *datastore.Key {
	k := datastore.NameKey(kind, name, nil)
	k.Namespace = p.Namespace
	return k
}

func (p *Provider) query(kind string) *datastore.Query {
	return datastore.NewQuery(kind).Namespace(p.Namespace)
}

type dataStoreClient interface {
	io.Closer
	Get(ctx context.Context, key *datastore.Key, dst interface{}) (err error)
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
	Delete(ctx context.Context, key *datastore.Key) error
	GetAll(ctx context.Context, q *datastore.Query, dst interface{}) (keys []*datastore.Key, err error)
	RunInTransaction(ctx context.Context, f func(tx *datastore.Transaction) error, opts ...datastore.TransactionOption) (*datastore.Commit, error)
}
