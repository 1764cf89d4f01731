package targets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, `---
targets:
  - id: example
    url: https://example.com
  - url: https://example.org/health
    disabled: true
`)

	file, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(file.Targets) != 2 {
		t.Fatalf("Load() returned %d targets, want 2", len(file.Targets))
	}
	if file.Targets[0].ID != "example" || file.Targets[1].URL != "https://example.org/health" {
		t.Errorf("Load() = %+v", file.Targets)
	}
	if !file.Targets[1].Disabled {
		t.Error("second target should be disabled")
	}
}

func TestLoaderLoadWithTemplateVariables(t *testing.T) {
	t.Setenv("STATUS_HOST", "status.example.net")
	path := writeFile(t, `targets:
  - url: https://{{ STATUS_HOST }}/ping
`)

	file, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := file.Targets[0].URL; got != "https://status.example.net/ping" {
		t.Errorf("URL = %q, want expanded host", got)
	}
}

func TestLoaderRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, `targets:
  - url: https://example.com
    interval: 5s
`)
	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("Load() should reject unknown fields")
	}
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	if err == nil || !strings.Contains(err.Error(), "failed to read targets file") {
		t.Errorf("Load() error = %v, want read failure", err)
	}
}
