package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenDirMissing(t *testing.T) {
	_, err := OpenDir("/nonexistent/frames")
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
}

func TestOpenDirEmpty(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a frame"), 0o644)

	_, err := OpenDir(dir)
	if err == nil {
		t.Fatal("Expected error for directory without JPEG files")
	}
}

func TestDirSourceCycles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("frame-a"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.jpeg"), []byte("frame-b"), 0o644)

	src, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	expected := []string{"frame-a", "frame-b", "frame-a"}
	for i, want := range expected {
		frame, err := src.Frame(ctx)
		if err != nil {
			t.Fatalf("Frame %d failed: %v", i, err)
		}
		if string(frame) != want {
			t.Errorf("Frame %d: expected '%s', got '%s'", i, want, frame)
		}
	}
}

func TestDirSourceCancelledContext(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("frame-a"), 0o644)

	src, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Frame(ctx); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}
