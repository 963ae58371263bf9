package prompts

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("Hello {{.Name}}, you have {{ .Count }} items in {{.Doc.Title}} {{.Name}}")
	want := []string{"Count", "Doc.Title", "Name"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractVariables() = %v, want %v", got, want)
	}
	if got := ExtractVariables("no variables"); len(got) != 0 {
		t.Errorf("ExtractVariables() = %v, want empty", got)
	}
}

func TestHashText(t *testing.T) {
	if HashText("a") == HashText("b") {
		t.Error("HashText() should differ for different inputs")
	}
	if len(HashText("a")) != 64 {
		t.Errorf("HashText() length = %d, want 64", len(HashText("a")))
	}
}

func TestRender(t *testing.T) {
	got, err := Render("t", "Text: {{.Text}}", map[string]string{"Text": "abc"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "Text: abc" {
		t.Errorf("Render() = %q", got)
	}

	if _, err := Render("t", "{{.Missing}}", map[string]string{}); err == nil {
		t.Error("Render() expected error for missing key")
	}
	if _, err := Render("t", "{{.Broken", nil); err == nil {
		t.Error("Render() expected parse error")
	}
}

func TestResolver(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir, nil)
	r.Register(EmbeddedPrompt{Key: "stage.one", Text: "default {{.Text}}", Description: "one"})
	r.Register(EmbeddedPrompt{Key: "stage.two", Text: "second"})

	t.Run("embedded default", func(t *testing.T) {
		p, err := r.Resolve("stage.one")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsOverride {
			t.Error("IsOverride = true, want false")
		}
		if !reflect.DeepEqual(p.Variables, []string{"Text"}) {
			t.Errorf("Variables = %v", p.Variables)
		}
		if p.Hash != HashText("default {{.Text}}") {
			t.Error("Hash should be computed on Register")
		}
	})

	t.Run("override file wins", func(t *testing.T) {
		path := filepath.Join(dir, "stage.one.tmpl")
		if err := os.WriteFile(path, []byte("custom {{.Text}}"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		defer os.Remove(path)

		out, err := r.Render("stage.one", map[string]string{"Text": "x"})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if out != "custom x" {
			t.Errorf("Render() = %q, want custom x", out)
		}
		p, _ := r.Resolve("stage.one")
		if !p.IsOverride || p.Path != path {
			t.Errorf("Resolve() = %+v", p)
		}
	})

	t.Run("blank override ignored", func(t *testing.T) {
		path := filepath.Join(dir, "stage.two.tmpl")
		if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		defer os.Remove(path)

		p, err := r.Resolve("stage.two")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsOverride || p.Text != "second" {
			t.Errorf("Resolve() = %+v, want embedded", p)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if _, err := r.Resolve("missing"); err == nil {
			t.Error("Resolve() expected error for unknown key")
		}
	})

	t.Run("all embedded sorted", func(t *testing.T) {
		all := r.AllEmbedded()
		if len(all) != 2 || all[0].Key != "stage.one" || all[1].Key != "stage.two" {
			t.Errorf("AllEmbedded() = %+v", all)
		}
	})
}

func TestResolver_NoOverrideDir(t *testing.T) {
	r := NewResolver("", nil)
	r.Register(EmbeddedPrompt{Key: "k", Text: "t"})

	if r.OverridePath("k") != "" {
		t.Error("OverridePath() should be empty without a directory")
	}
	if _, err := r.ExportDefaults(false); err == nil {
		t.Error("ExportDefaults() expected error without a directory")
	}
}

func TestResolver_ExportDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	r := NewResolver(dir, nil)
	r.Register(EmbeddedPrompt{Key: "a", Text: "alpha"})
	r.Register(EmbeddedPrompt{Key: "b", Text: "beta"})

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.tmpl"), []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}

	written, err := r.ExportDefaults(false)
	if err != nil {
		t.Fatalf("ExportDefaults() error = %v", err)
	}
	if len(written) != 1 || !strings.HasSuffix(written[0], "b.tmpl") {
		t.Errorf("written = %v, want only b.tmpl", written)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "a.tmpl"))
	if string(data) != "edited" {
		t.Errorf("existing override overwritten: %q", data)
	}

	written, err = r.ExportDefaults(true)
	if err != nil {
		t.Fatalf("ExportDefaults(overwrite) error = %v", err)
	}
	if len(written) != 2 {
		t.Errorf("written = %v, want 2 files", written)
	}
}
