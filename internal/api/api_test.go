package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/hardware" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("refresh") != "true" {
			t.Errorf("refresh = %q", r.URL.Query().Get("refresh"))
		}
		w.Write([]byte(`{"device":"cpu"}`))
	}))
	defer srv.Close()

	var out map[string]string
	err := NewClient(srv.URL).Get(context.Background(), "/api/hardware", map[string][]string{"refresh": {"true"}}, &out)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out["device"] != "cpu" {
		t.Errorf("device = %q", out["device"])
	}
}

func TestClient_Post(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]string{"echo": body["text"]})
	}))
	defer srv.Close()

	var out map[string]string
	if err := NewClient(srv.URL).Post(context.Background(), "/api/extract", map[string]string{"text": "hi"}, &out); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if out["echo"] != "hi" {
		t.Errorf("echo = %q", out["echo"])
	}
}

func TestClient_PostFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")
	if err := os.WriteFile(path, []byte("name,qty\nbolt,5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "items.csv" || !bytes.Contains(data, []byte("bolt")) {
			t.Errorf("upload = %s %q", header.Filename, data)
		}
		if r.FormValue("max_items") != "3" {
			t.Errorf("max_items = %q", r.FormValue("max_items"))
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).PostFile(context.Background(), "/api/process/file", path, map[string]string{"max_items": "3"}, nil)
	if err != nil {
		t.Fatalf("PostFile() error = %v", err)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"model does not fit"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Get(context.Background(), "/x", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if se.Code != http.StatusUnprocessableEntity || se.Message != "model does not fit" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestOutputTo(t *testing.T) {
	data := map[string]int{"items": 2}

	var buf bytes.Buffer
	if err := OutputTo(&buf, OutputFormatJSON, data); err != nil {
		t.Fatalf("OutputTo() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"items": 2`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	if err := OutputTo(&buf, OutputFormatYAML, data); err != nil {
		t.Fatalf("OutputTo() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "items: 2" {
		t.Errorf("yaml output = %q", buf.String())
	}

	if err := OutputTo(&buf, "toml", data); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestOutputToFile(t *testing.T) {
	dir := t.TempDir()
	data := map[string]int{"items": 2}

	jsonPath := filepath.Join(dir, "out.json")
	if err := OutputToFile(data, jsonPath); err != nil {
		t.Fatalf("OutputToFile() error = %v", err)
	}
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(raw, &got); err != nil || got["items"] != 2 {
		t.Errorf("json file = %q, err %v", raw, err)
	}

	yamlPath := filepath.Join(dir, "out.yaml")
	if err := OutputToFile(data, yamlPath); err != nil {
		t.Fatalf("OutputToFile() error = %v", err)
	}
	raw, _ = os.ReadFile(yamlPath)
	if strings.TrimSpace(string(raw)) != "items: 2" {
		t.Errorf("yaml file = %q", raw)
	}
}

type fakeEndpoint struct {
	method, path, group string
	init                bool
}

func (e *fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
}
func (e *fakeEndpoint) RequiresInit() bool { return e.init }
func (e *fakeEndpoint) Group() string      { return e.group }
func (e *fakeEndpoint) Command(func() string) *cobra.Command {
	return &cobra.Command{Use: strings.TrimPrefix(e.path, "/")}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeEndpoint{method: "GET", path: "/health"})
	r.Register(&fakeEndpoint{method: "POST", path: "/text", group: "process", init: true})
	r.Register(&fakeEndpoint{method: "POST", path: "/file", group: "process", init: true})

	gated := 0
	mux := http.NewServeMux()
	r.RegisterRoutes(mux, func(h http.HandlerFunc) http.HandlerFunc {
		gated++
		return h
	})
	if gated != 2 {
		t.Errorf("init middleware applied %d times, want 2", gated)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("GET /health = %d", rec.Code)
	}

	root := r.BuildCommands(func() string { return "" })
	if len(root.Commands()) != 2 {
		t.Fatalf("top-level commands = %d, want 2 (health, process)", len(root.Commands()))
	}
	process, _, err := root.Find([]string{"process", "file"})
	if err != nil || process.Name() != "file" {
		t.Errorf("Find(process file) = %v, %v", process, err)
	}
}
