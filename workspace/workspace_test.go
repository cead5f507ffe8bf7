package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func init() {
	Init(logrus.New())
}

func TestNewCreatesUniqueDirs(t *testing.T) {
	root := t.TempDir()

	a, err := New(root)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	b, err := New(root)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if a.Dir() == b.Dir() {
		t.Fatalf("two workspaces share a directory: %s", a.Dir())
	}
	for _, ws := range []*Workspace{a, b} {
		if fi, err := os.Stat(ws.Dir()); err != nil || !fi.IsDir() {
			t.Fatalf("workspace dir %s missing: %v", ws.Dir(), err)
		}
	}
}

func TestCleanupRemovesEverything(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := os.WriteFile(ws.Path("video.mp4"), []byte("data"), 0600); err != nil {
		t.Fatal(err)
	}

	ws.Cleanup()

	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Fatalf("workspace dir still present after Cleanup: %v", err)
	}
}

func TestCleanupTwiceIsHarmless(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ws.Cleanup()
	ws.Cleanup()
}

func TestLargestFile(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer ws.Cleanup()

	if err := os.WriteFile(ws.Path("small"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ws.Path("big.mp4"), make([]byte, 4096), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(ws.Path("sub"), 0700); err != nil {
		t.Fatal(err)
	}

	got, err := ws.LargestFile()
	if err != nil {
		t.Fatalf("LargestFile() error: %v", err)
	}
	if filepath.Base(got) != "big.mp4" {
		t.Fatalf("LargestFile() = %s, want big.mp4", got)
	}
}

func TestLargestFileEmptyWorkspace(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer ws.Cleanup()

	if _, err := ws.LargestFile(); err == nil {
		t.Fatal("LargestFile() on empty workspace returned no error")
	}
}
