// Package fsutil holds the file-tree primitives the repository manager is
// built on: copying files and directories and atomically swapping a
// directory for a fresh copy of another.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies a single regular file preserving its mode.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	defer func() {
		_ = out.Close()
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.Chmod(dst, info.Mode())
}

// CopyDir recursively copies a directory tree from src to dst.
func CopyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	if err = os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			err = CopyDir(srcPath, dstPath)
		} else {
			err = CopyFile(srcPath, dstPath)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// ReplaceDir makes dst an exact fresh copy of src.
//
// A symlink at dst is unlinked without touching its target; a real directory
// is removed recursively. The result is always a real directory, never a
// stale or partial previous copy.
func ReplaceDir(src, dst string) error {
	if info, err := os.Lstat(dst); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			if err = os.Remove(dst); err != nil {
				return fmt.Errorf("unlink %s: %w", dst, err)
			}
		} else if info.IsDir() {
			if err = os.RemoveAll(dst); err != nil {
				return fmt.Errorf("remove %s: %w", dst, err)
			}
		} else if err = os.Remove(dst); err != nil {
			return fmt.Errorf("remove %s: %w", dst, err)
		}
	}

	return CopyDir(src, dst)
}
