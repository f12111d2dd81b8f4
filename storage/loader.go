package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kubex/caseload-identity/storage/datastore"
	"github.com/kubex/caseload-identity/storage/memory"
	"github.com/kubex/caseload-identity/storage/mysql"
	"github.com/kubex/caseload-identity/storage/redis"
)

func Load(jsonBytes []byte) (Provider, error) {

	loader := struct {
		Provider      string
		Configuration *json.RawMessage
	}{}

	err := json.Unmarshal(jsonBytes, &loader)
	if err != nil {
		return nil, err
	}

	cfg := []byte("{}")
	if loader.Configuration != nil {
		cfg = *loader.Configuration
	}

	switch loader.Provider {
	case memory.ProviderKey:
		return memory.New(), nil
	case datastore.ProviderKey:
		return datastore.FromJson(cfg)
	case mysql.ProviderKey:
		return mysql.FromJson(cfg)
	case redis.ProviderKey:
		return redis.FromJson(cfg)
	}

	return nil, errors.New("unable to load storage provider '" + loader.Provider + "'")
}

func LoadFile(path string) (Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load storage config @ %s: %w", path, err)
	}
	return Load(data)
}
