package checkpointer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// NewRunDir creates and returns a new directory under root for the
// data of a single run. Directory names start with the creation time
// so that runs sort chronologically.
func NewRunDir(root string) (string, error) {
	name := fmt.Sprintf("%v-%v", time.Now().Format("2006-01-02-15-04-05"),
		uuid.NewString()[:8])
	dir := filepath.Join(root, name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("newrundir: %w", err)
	}
	return dir, nil
}
