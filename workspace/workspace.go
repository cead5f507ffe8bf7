// Package workspace manages the per-request scratch directory that holds
// every intermediate and final file for one download. No workspace outlives
// its request.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func Init(logger *logrus.Logger) error {
	log = logger.WithFields(logrus.Fields{
		"component": "workspace",
	}).Logger
	return nil
}

type Workspace struct {
	dir string
}

// New allocates a fresh, uniquely-named directory under root. UUIDv7 names
// keep concurrent requests collision-free without locking.
func New(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("create download root %s: %w", root, err)
	}
	dir := filepath.Join(root, fmt.Sprintf("ydl_%s", uuid.Must(uuid.NewV7())))
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Cleanup removes the workspace and everything in it. Failures are logged
// and swallowed; there is nothing useful a caller can do with them.
func (w *Workspace) Cleanup() {
	if err := os.RemoveAll(w.dir); err != nil {
		log.Errorf("cleanup %s: %v", w.dir, err)
	}
}

// LargestFile returns the biggest regular file in the workspace. The
// extraction tool names its own output, so after a fetch this is how the
// downloaded artifact is located.
func (w *Workspace) LargestFile() (string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", err
	}

	var best string
	var bestSize int64 = -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(w.dir, entry.Name())
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no file downloaded into %s", w.dir)
	}
	return best, nil
}
