package dev

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vorma-dev/vorma/internal/config"
)

func newServerFixture(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	payloadDir := filepath.Join(dir, "payloads")
	if err := os.MkdirAll(filepath.Join(payloadDir, "users"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Name = "demo"
	cfg.Dev.PayloadDir = payloadDir
	cfg.Dev.AssetDir = filepath.Join(dir, "assets")

	return NewServer(cfg), payloadDir
}

func TestServePayloadFixture(t *testing.T) {
	s, payloadDir := newServerFixture(t)
	fixture := `{"matchedPatterns": ["/users/:id"], "loadersData": [{"name": "ada"}]}`
	if err := os.WriteFile(filepath.Join(payloadDir, "users", "42.json"), []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/users/42?vorma_json=build-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Vorma-Build-Id"); got != s.BuildID() {
		t.Errorf("build header = %q, want %q", got, s.BuildID())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
}

func TestServeRootFixture(t *testing.T) {
	s, payloadDir := newServerFixture(t)
	if err := os.WriteFile(filepath.Join(payloadDir, "index.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?vorma_json=b", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMissingFixtureIs404(t *testing.T) {
	s, _ := newServerFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/nope?vorma_json=b", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestFixturePathConfinedToPayloadDir(t *testing.T) {
	s, _ := newServerFixture(t)
	p, err := s.fixturePath("/../../etc/passwd")
	if err != nil {
		return // rejecting the traversal outright is fine too
	}
	root, _ := filepath.Abs(s.cfg.Dev.PayloadDir)
	if !strings.HasPrefix(p, root+string(filepath.Separator)) {
		t.Errorf("fixture path %q escaped %q", p, root)
	}
}

func TestDocumentShellWithoutQueryParam(t *testing.T) {
	s, _ := newServerFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
}

func TestBumpBuildIDRotates(t *testing.T) {
	s, _ := newServerFixture(t)
	old := s.BuildID()
	if s.BumpBuildID() == old {
		t.Error("expected a fresh build id")
	}
}
