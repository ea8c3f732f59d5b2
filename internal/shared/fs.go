package shared

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MoveFile moves src to dst, falling back to copy-then-delete when a rename
// is not possible (typically when src and dst are on different filesystems).
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source after copy: %w", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}

	return out.Close()
}

// UniquePath returns path unchanged when nothing exists there, otherwise the
// first free "name (2).ext", "name (3).ext", ... variant.
func UniquePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	for n := 2; ; n++ {
		alt := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Stat(alt); err != nil {
			return alt
		}
	}
}

// FindFileByName looks for a file named base under root, checking the direct
// child first and then walking subdirectories (the download daemon may nest
// files under per-peer folders). Returns "" when nothing matches.
func FindFileByName(root, base string) string {
	direct := filepath.Join(root, base)
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct
	}

	var found string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtree; keep walking the rest
			return nil
		}
		if !d.IsDir() && d.Name() == base {
			found = path
			return fs.SkipAll
		}
		return nil
	})

	return found
}

// PruneEmptyAncestors removes empty directories from start upward, stopping
// before root. Best effort: reports whether any directory was removed.
func PruneEmptyAncestors(root, start string) bool {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return false
	}

	sep := string(filepath.Separator)
	pruned := false

	for dir != rootAbs && strings.HasPrefix(dir, rootAbs+sep) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
		pruned = true
		dir = filepath.Dir(dir)
	}

	return pruned
}
