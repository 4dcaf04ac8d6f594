package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/54b3r/libgen-go/internal/llm"
)

// ErrOutsideRoot is returned by WriteCode for a path that escapes its root.
var ErrOutsideRoot = errors.New("workflow: output path is outside the root directory")

// WriteCode writes code, with markdown fences stripped, to name resolved
// against root and returns the absolute path written. Parent directories are
// created. name must stay inside root.
func WriteCode(root, name, code string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("workflow: output file name is empty")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("workflow: resolve root %s: %w", root, err)
	}
	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(absRoot, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("workflow: create directory for %s: %w", target, err)
	}
	if err := os.WriteFile(target, []byte(llm.CleanCode(code)), 0o644); err != nil {
		return "", fmt.Errorf("workflow: write %s: %w", target, err)
	}
	return target, nil
}
