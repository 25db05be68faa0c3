package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Dev.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Dev.Port, DefaultPort)
	}
	if cfg.Dev.Host != DefaultHost {
		t.Errorf("host = %q, want %q", cfg.Dev.Host, DefaultHost)
	}
	if cfg.Build.PublicPathPrefix != DefaultPublicPathPrefix {
		t.Errorf("prefix = %q", cfg.Build.PublicPathPrefix)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, JSONConfigFileName), `{"name": "demo", "dev": {"port": 4100}}`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if cfg.Name != "demo" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Dev.Port != 4100 {
		t.Errorf("port = %d, want 4100", cfg.Dev.Port)
	}
	if cfg.Dev.Host != DefaultHost {
		t.Errorf("host = %q, defaults should still apply", cfg.Dev.Host)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, YAMLConfigFileName), "name: demo-yaml\ndev:\n  port: 4200\n")

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if cfg.Name != "demo-yaml" || cfg.Dev.Port != 4200 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestJSONWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, JSONConfigFileName), `{"name": "from-json"}`)
	write(t, filepath.Join(dir, YAMLConfigFileName), "name: from-yaml\n")

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "from-json" {
		t.Errorf("name = %q, want from-json", cfg.Name)
	}
}

func TestMissingConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path() != "" {
		t.Errorf("path = %q, want empty for defaults", cfg.Path())
	}
}

func TestInvalidJSONFails(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, JSONConfigFileName), `{not json`)
	if _, err := LoadFromDir(dir); err == nil {
		t.Error("expected a parse error")
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
