package home

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDirName is the default name for the quotient home directory.
	DefaultDirName = ".quotient"

	// PromptsDirName holds prompt overrides.
	PromptsDirName = "prompts"

	// ModelsDirName holds local model files (GGUF).
	ModelsDirName = "models"

	// OutputDirName holds exported results.
	OutputDirName = "output"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the quotient home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.quotient).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// PromptsPath returns the prompt override directory.
func (d *Dir) PromptsPath() string {
	return filepath.Join(d.path, PromptsDirName)
}

// ModelsPath returns the local model directory.
func (d *Dir) ModelsPath() string {
	return filepath.Join(d.path, ModelsDirName)
}

// OutputPath returns the export directory.
func (d *Dir) OutputPath() string {
	return filepath.Join(d.path, OutputDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.PromptsPath(), d.ModelsPath(), d.OutputPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ResolveOutputDir returns dir when absolute, otherwise dir under the home.
// Empty returns OutputPath.
func (d *Dir) ResolveOutputDir(dir string) string {
	switch {
	case dir == "":
		return d.OutputPath()
	case filepath.IsAbs(dir):
		return dir
	}
	return filepath.Join(d.path, dir)
}

// ExportPath returns a timestamped export file path for a source document,
// e.g. output/invoice_20240102-150405.json.
func (d *Dir) ExportPath(dir, source, ext string, at time.Time) string {
	base := filepath.Base(source)
	base = base[:len(base)-len(filepath.Ext(base))]
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "result"
	}
	name := fmt.Sprintf("%s_%s.%s", base, at.Format("20060102-150405"), ext)
	return filepath.Join(d.ResolveOutputDir(dir), name)
}
