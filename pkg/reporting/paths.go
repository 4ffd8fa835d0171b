package reporting

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct {
	root string
}

// NewDefaultPathManager creates a path manager rooted at root; empty means "results"
func NewDefaultPathManager(root string) *DefaultPathManager {
	if strings.TrimSpace(root) == "" {
		root = "results"
	}
	return &DefaultPathManager{root: root}
}

// GetOutputDir returns the directory for one experiment and mode, e.g. results/spy_wfo
func (p *DefaultPathManager) GetOutputDir(name, mode string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = "experiment"
	}
	n = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(n)
	if m := strings.ToLower(strings.TrimSpace(mode)); m != "" {
		n += "_" + m
	}
	return filepath.Join(p.root, n)
}

// EnsureDirectoryExists creates the parent directory of path if it doesn't exist
func EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
