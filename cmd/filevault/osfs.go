package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/absfs/absfs"
)

// dirFS is an absfs.FileSystem over one host directory. Paths are
// interpreted relative to root.
type dirFS struct {
	root string
	cwd  string
}

func (fs *dirFS) path(name string) string {
	return filepath.Join(fs.root, filepath.FromSlash(name))
}

func (fs *dirFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(fs.path(name), flag, perm)
}

func (fs *dirFS) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(fs.path(name), perm)
}

func (fs *dirFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(fs.path(name), perm)
}

func (fs *dirFS) Remove(name string) error {
	return os.Remove(fs.path(name))
}

func (fs *dirFS) RemoveAll(path string) error {
	return os.RemoveAll(fs.path(path))
}

func (fs *dirFS) Rename(oldpath, newpath string) error {
	return os.Rename(fs.path(oldpath), fs.path(newpath))
}

func (fs *dirFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(fs.path(name))
}

func (fs *dirFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(fs.path(name), mode)
}

func (fs *dirFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(fs.path(name), atime, mtime)
}

func (fs *dirFS) Chown(name string, uid, gid int) error {
	return os.Chown(fs.path(name), uid, gid)
}

func (fs *dirFS) Separator() uint8 {
	return '/'
}

func (fs *dirFS) ListSeparator() uint8 {
	return os.PathListSeparator
}

func (fs *dirFS) Chdir(dir string) error {
	fs.cwd = dir
	return nil
}

func (fs *dirFS) Getwd() (string, error) {
	if fs.cwd == "" {
		return "/", nil
	}
	return fs.cwd, nil
}

func (fs *dirFS) TempDir() string {
	return os.TempDir()
}

func (fs *dirFS) Open(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *dirFS) Create(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
}

func (fs *dirFS) Truncate(name string, size int64) error {
	return os.Truncate(fs.path(name), size)
}
