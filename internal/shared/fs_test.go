package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestMoveFile(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src.flac")
	dst := filepath.Join(tmpDir, "out", "dst.flac")
	writeTestFile(t, src, "audio")

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		t.Fatalf("failed to create dest dir: %v", err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile() error = %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone after move")
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read moved file: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("moved file content = %q, want %q", data, "audio")
	}
}

func TestUniquePath(t *testing.T) {
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "Artist - Title.flac")
	if got := UniquePath(path); got != path {
		t.Errorf("UniquePath() on free path = %q, want %q", got, path)
	}

	writeTestFile(t, path, "first")
	want2 := filepath.Join(tmpDir, "Artist - Title (2).flac")
	if got := UniquePath(path); got != want2 {
		t.Errorf("UniquePath() with one collision = %q, want %q", got, want2)
	}

	writeTestFile(t, want2, "second")
	want3 := filepath.Join(tmpDir, "Artist - Title (3).flac")
	if got := UniquePath(path); got != want3 {
		t.Errorf("UniquePath() with two collisions = %q, want %q", got, want3)
	}
}

func TestFindFileByName(t *testing.T) {
	tmpDir := t.TempDir()

	if got := FindFileByName(tmpDir, "missing.flac"); got != "" {
		t.Errorf("FindFileByName() on empty tree = %q, want empty", got)
	}

	direct := filepath.Join(tmpDir, "direct.flac")
	writeTestFile(t, direct, "x")
	if got := FindFileByName(tmpDir, "direct.flac"); got != direct {
		t.Errorf("FindFileByName() direct child = %q, want %q", got, direct)
	}

	nested := filepath.Join(tmpDir, "peer", "Music", "nested.flac")
	writeTestFile(t, nested, "x")
	if got := FindFileByName(tmpDir, "nested.flac"); got != nested {
		t.Errorf("FindFileByName() nested = %q, want %q", got, nested)
	}

	// A directory carrying the name must not match.
	if err := os.MkdirAll(filepath.Join(tmpDir, "dirname.flac"), 0755); err != nil {
		t.Fatalf("failed to create decoy dir: %v", err)
	}
	if got := FindFileByName(tmpDir, "dirname.flac"); got != "" {
		t.Errorf("FindFileByName() matched a directory: %q", got)
	}
}

func TestPruneEmptyAncestors(t *testing.T) {
	t.Run("removes empty chain up to root", func(t *testing.T) {
		root := t.TempDir()
		leaf := filepath.Join(root, "a", "b", "c")
		if err := os.MkdirAll(leaf, 0755); err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		if !PruneEmptyAncestors(root, leaf) {
			t.Error("expected at least one directory to be pruned")
		}

		if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
			t.Error("empty ancestor chain should be removed")
		}
		if _, err := os.Stat(root); err != nil {
			t.Errorf("root must survive pruning: %v", err)
		}
	})

	t.Run("stops at non-empty ancestor", func(t *testing.T) {
		root := t.TempDir()
		leaf := filepath.Join(root, "a", "b", "c")
		if err := os.MkdirAll(leaf, 0755); err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		writeTestFile(t, filepath.Join(root, "a", "keep.txt"), "x")

		if !PruneEmptyAncestors(root, leaf) {
			t.Error("expected empty descendants to be pruned")
		}

		if _, err := os.Stat(filepath.Join(root, "a", "b")); !os.IsNotExist(err) {
			t.Error("empty subtree should be removed")
		}
		if _, err := os.Stat(filepath.Join(root, "a")); err != nil {
			t.Errorf("non-empty ancestor must survive: %v", err)
		}
	})

	t.Run("refuses paths outside root", func(t *testing.T) {
		root := t.TempDir()
		outside := t.TempDir()

		if PruneEmptyAncestors(root, outside) {
			t.Error("must not prune outside the root")
		}
		if _, err := os.Stat(outside); err != nil {
			t.Errorf("outside directory must survive: %v", err)
		}
	})

	t.Run("non-empty start is untouched", func(t *testing.T) {
		root := t.TempDir()
		leaf := filepath.Join(root, "a")
		writeTestFile(t, filepath.Join(leaf, "keep.txt"), "x")

		if PruneEmptyAncestors(root, leaf) {
			t.Error("expected nothing to be pruned")
		}
		if _, err := os.Stat(leaf); err != nil {
			t.Errorf("non-empty start must survive: %v", err)
		}
	})
}
