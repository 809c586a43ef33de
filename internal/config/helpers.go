package config

import (
	"os"
	"path/filepath"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// resolvePath resolves p against baseDir when p is relative, per spec.md
// §9: config paths are resolved against the config file's directory, never
// the process's current working directory.
func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
