package home

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-quotient")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-quotient" {
			t.Errorf("expected path /tmp/test-quotient, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-quotient")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"PromptsPath", dir.PromptsPath(), "/tmp/test-quotient/prompts"},
		{"ModelsPath", dir.ModelsPath(), "/tmp/test-quotient/models"},
		{"OutputPath", dir.OutputPath(), "/tmp/test-quotient/output"},
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-quotient/config.yaml"},
		{"ResolveOutputDir relative", dir.ResolveOutputDir("exports"), "/tmp/test-quotient/exports"},
		{"ResolveOutputDir absolute", dir.ResolveOutputDir("/var/out"), "/var/out"},
		{"ResolveOutputDir empty", dir.ResolveOutputDir(""), "/tmp/test-quotient/output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_ExportPath(t *testing.T) {
	dir, _ := New("/tmp/test-quotient")
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	got := dir.ExportPath("output", "/docs/invoice.pdf", "json", at)
	if want := "/tmp/test-quotient/output/invoice_20240102-150405.json"; got != want {
		t.Errorf("ExportPath() = %s, want %s", got, want)
	}

	got = dir.ExportPath("", "", "csv", at)
	if want := "/tmp/test-quotient/output/result_20240102-150405.csv"; got != want {
		t.Errorf("ExportPath() = %s, want %s", got, want)
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	quotientDir := filepath.Join(tmpDir, "quotient-test")

	dir, err := New(quotientDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}

	for _, sub := range []string{dir.PromptsPath(), dir.ModelsPath(), dir.OutputPath()} {
		if _, err := os.Stat(sub); os.IsNotExist(err) {
			t.Errorf("%s should exist after EnsureExists", sub)
		}
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}
