package storage

import (
	"strings"
	"testing"

	"github.com/kubex/caseload-identity/storage/datastore"
	"github.com/kubex/caseload-identity/storage/memory"
	"github.com/kubex/caseload-identity/storage/mysql"
	"github.com/kubex/caseload-identity/storage/redis"
)

func TestLoad(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		expect func(Provider) bool
	}{
		{"memory", `{"Provider":"memory"}`, func(p Provider) bool { _, ok := p.(*memory.Provider); return ok }},
		{"datastore", `{"Provider":"datastore","Configuration":{"projectId":"caseload-dev"}}`, func(p Provider) bool {
			d, ok := p.(*datastore.Provider)
			return ok && d.ProjectID == "caseload-dev"
		}},
		{"mysql", `{"Provider":"mysql","Configuration":{"primaryDsn":"root@tcp(localhost:3306)","database":"caseload"}}`, func(p Provider) bool {
			m, ok := p.(*mysql.Provider)
			return ok && m.Database == "caseload"
		}},
		{"redis", `{"Provider":"redis","Configuration":{"url":"redis://localhost:6379/2","prefix":"cl:"}}`, func(p Provider) bool {
			r, ok := p.(*redis.Provider)
			return ok && r.URL == "redis://localhost:6379/2" && r.Prefix == "cl:"
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Load([]byte(tc.input))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !tc.expect(p) {
				t.Errorf("unexpected provider %T", p)
			}
		})
	}
}

func TestLoadFailures(t *testing.T) {
	if _, err := Load([]byte(`{"Provider":"cassandra"}`)); err == nil || !strings.Contains(err.Error(), "unable to load storage provider 'cassandra'") {
		t.Errorf("expected unknown provider error, got %v", err)
	}
	if _, err := Load([]byte(`{`)); err == nil {
		t.Error("expected json error")
	}
	if _, err := LoadFile("_testdata/missing.json"); err == nil {
		t.Error("expected missing file error")
	}
}
