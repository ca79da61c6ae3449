// Package fs provides the filesystem helpers the rest of recc builds on:
// atomic file writes (used to materialize remote outputs), directory
// walking, and hardlink-or-copy helpers. Adapted from thought-machine/please's
// src/fs, trimmed to what a one-shot client needs (no xattr hash cache:
// recc keeps no on-disk state across invocations).
package fs

import (
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// DirPermissions are the default permission bits applied to created directories.
const DirPermissions = os.ModeDir | 0775

// EnsureDir ensures the directory containing filename exists.
func EnsureDir(filename string) error {
	return os.MkdirAll(filepath.Dir(filename), DirPermissions)
}

// PathExists returns true if the given path exists, as a file or directory.
func PathExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// FileExists returns true if the given path exists and is not a directory.
func FileExists(filename string) bool {
	info, err := os.Lstat(filename)
	return err == nil && !info.IsDir()
}

// IsSameFile returns true if two paths name the same underlying inode.
func IsSameFile(a, b string) bool {
	i1, err1 := inode(a)
	i2, err2 := inode(b)
	return err1 == nil && err2 == nil && i1 == i2
}

func inode(filename string) (uint64, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return 0, err
	}
	s, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, os.ErrInvalid
	}
	return s.Ino, nil
}

// WriteFile writes data from r to the file named "to", via a temp file in
// the same directory followed by a rename, so a crash partway through never
// leaves a half-written output in place.
func WriteFile(r io.Reader, to string, mode os.FileMode) error {
	dir, base := filepath.Split(to)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, base)
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), to)
}

// CopyFile copies the contents of from to to, atomically, with the given mode.
func CopyFile(from, to string, mode os.FileMode) error {
	f, err := os.Open(from)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteFile(f, to, mode)
}

// CopyOrLinkFile either hardlinks or copies from to to. It falls back to a
// copy if the hardlink fails and fallback is true. Symlinks are recreated
// rather than linked, since a hardlink to a symlink behaves inconsistently
// across platforms.
func CopyOrLinkFile(from, to string, mode os.FileMode, link, fallback bool) error {
	if link {
		if info, err := os.Lstat(from); err == nil && info.Mode()&os.ModeSymlink != 0 {
			dest, err := os.Readlink(from)
			if err != nil {
				return err
			}
			return os.Symlink(dest, to)
		}
		if err := os.Link(from, to); err == nil || !fallback {
			return err
		}
	}
	return CopyFile(from, to, mode)
}
