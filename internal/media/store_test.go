package media

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir, "uploads/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	url, err := s.Save("car", ".jpg", []byte("jpegdata"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/car-") || !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("unexpected url %s", url)
	}
	name := strings.TrimPrefix(url, "/uploads/")
	got, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil || string(got) != "jpegdata" {
		t.Fatalf("file not written: %v %q", err, got)
	}
	if err := s.Remove(url); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := s.Remove(url); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
}

func TestRemoveRejectsTraversal(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, u := range []string{"/etc/passwd", "/uploads/../secret", "/uploads/", "https://cdn.example.com/a.jpg"} {
		if err := s.Remove(u); !errors.Is(err, ErrOutsideRoot) {
			t.Fatalf("%s: expected ErrOutsideRoot, got %v", u, err)
		}
	}
}
