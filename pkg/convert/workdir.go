package convert

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NewWorkDir creates a fresh scratch directory under parent, or under the
// system temp directory when parent is empty. cleanup removes it.
func NewWorkDir(parent string) (dir string, cleanup func(), err error) {
	if parent == "" {
		parent = os.TempDir()
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", nil, fmt.Errorf("work dir: %w", err)
	}
	dir = filepath.Join(parent, "facet-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("work dir: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}
