package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		StorageConfig:        writeFile(t, dir, "storage.json", `{"Provider":"memory"}`),
		BootstrapFile:        writeFile(t, dir, "bootstrap.json", `[{"email":"boss@x.com","role":"admin","title":"Director"}]`),
		LogMode:              "prod",
		DefaultRole:          caseload.RolePending,
		MigrationConcurrency: 4,
	}

	r, store, closeFn, err := Setup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	boss, err := r.Resolve(context.Background(), caseload.IdentityEvent{ProviderKey: "B1", Email: "Boss@x.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if boss.Identity.Role != caseload.RoleAdmin || boss.Identity.Title != "Director" {
		t.Errorf("boss = %+v", boss.Identity)
	}
	other, err := r.Resolve(context.Background(), caseload.IdentityEvent{ProviderKey: "O1", Email: "other@x.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if other.Identity.Role != caseload.RolePending {
		t.Errorf("other role = %s", other.Identity.Role)
	}
	if _, err := store.GetUser(context.Background(), "B1"); err != nil {
		t.Errorf("store not shared with resolver: %v", err)
	}
}

func TestSetupDefaults(t *testing.T) {
	r, _, closeFn, err := Setup(context.Background(), config.Config{LogMode: "prod"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer closeFn()

	res, err := r.Resolve(context.Background(), caseload.IdentityEvent{ProviderKey: "U1", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Identity.Role != caseload.DefaultRole {
		t.Errorf("Role = %s", res.Identity.Role)
	}
}

func TestSetupErrors(t *testing.T) {
	dir := t.TempDir()
	memoryConfig := writeFile(t, dir, "storage.json", `{"Provider":"memory"}`)
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"missing storage config", config.Config{StorageConfig: filepath.Join(dir, "absent.json")}},
		{"unknown provider", config.Config{StorageConfig: writeFile(t, dir, "unknown.json", `{"Provider":"floppy"}`)}},
		{"missing bootstrap", config.Config{StorageConfig: memoryConfig, BootstrapFile: filepath.Join(dir, "absent.json")}},
		{"bad bootstrap role", config.Config{StorageConfig: memoryConfig, BootstrapFile: writeFile(t, dir, "bad.json", `[{"email":"a@x.com","role":"root"}]`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.LogMode = "prod"
			if _, _, _, err := Setup(context.Background(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
