package fs

import (
	"os"

	"github.com/karrick/godirwalk"
)

// Mode describes the type bits of a directory entry, without the full
// os.FileMode permission bits — enough for the merkleizer and output
// materializer to tell files, directories and symlinks apart without an
// extra Lstat.
type Mode interface {
	IsDir() bool
	IsSymlink() bool
	IsRegular() bool
}

type fileMode os.FileMode

func (m fileMode) IsDir() bool      { return os.FileMode(m).IsDir() }
func (m fileMode) IsRegular() bool  { return os.FileMode(m).IsRegular() }
func (m fileMode) IsSymlink() bool  { return os.FileMode(m)&os.ModeSymlink != 0 }

// Walk is filepath.Walk's interface implemented over godirwalk, which is
// considerably faster for the large, mostly-unchanged dependency trees recc
// walks when RECC_DEPS_DIRECTORY_OVERRIDE is set.
func Walk(root string, callback func(path string, isDir bool) error) error {
	return WalkMode(root, func(path string, mode Mode) error {
		return callback(path, mode.IsDir())
	})
}

// WalkMode is like Walk but the callback also receives the entry's type bits.
func WalkMode(root string, callback func(path string, mode Mode) error) error {
	info, err := os.Lstat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return callback(root, fileMode(info.Mode()))
	}
	return godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, dirent *godirwalk.Dirent) error {
			return callback(path, dirent)
		},
		Unsorted: false,
	})
}
