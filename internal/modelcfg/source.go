package modelcfg

import (
	"os"
	"path/filepath"
	"strings"
)

// minGGUFBytes rejects truncated or placeholder model files.
const minGGUFBytes = 1024 * 1024

// SourceKind describes where model weights come from.
type SourceKind string

// Source kinds.
const (
	SourceLocal        SourceKind = "local"         // valid local GGUF file
	SourceLocalMissing SourceKind = "local_missing" // configured local file is unusable; remote ID used
	SourceRemote       SourceKind = "remote"        // hub/server model ID
)

// Source records where the configured model will be loaded from.
type Source struct {
	Kind   SourceKind `json:"kind" yaml:"kind"`
	Path   string     `json:"path,omitempty" yaml:"path,omitempty"`
	Reason string     `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ResolveSource validates an optional local GGUF path. When the path is
// empty the model is remote; when it is set but invalid the result is
// local_missing with the reason.
func ResolveSource(localPath string) Source {
	localPath = strings.TrimSpace(localPath)
	if localPath == "" {
		return Source{Kind: SourceRemote}
	}

	if reason := validateGGUF(localPath); reason != "" {
		return Source{Kind: SourceLocalMissing, Path: localPath, Reason: reason}
	}
	return Source{Kind: SourceLocal, Path: localPath}
}

func validateGGUF(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "file does not exist"
		}
		return err.Error()
	}
	if info.IsDir() {
		return "path is a directory"
	}
	if !strings.EqualFold(filepath.Ext(path), ".gguf") {
		return "not a .gguf file"
	}
	if info.Size() < minGGUFBytes {
		return "file is smaller than 1MB"
	}
	return ""
}
