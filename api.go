package v6fs

import (
	"os"
	"time"
)

// FileStat is the file system independent description of a single object on
// the image, in the spirit of syscall.Stat_t.
type FileStat struct {
	InodeNumber  uint64
	Nlinks       uint64
	ModeFlags    os.FileMode
	Uid          uint32
	Gid          uint32
	Size         int64
	BlockSize    int64
	NumBlocks    int64
	LastAccessed time.Time
	LastModified time.Time
}

func (stat *FileStat) IsDir() bool {
	return stat.ModeFlags.IsDir()
}

func (stat *FileStat) IsFile() bool {
	return stat.ModeFlags.IsRegular()
}

// DirectoryEntry represents a file, directory, or device encountered while
// listing a directory. It implements the os.FileInfo interface.
type DirectoryEntry struct {
	name string
	Stat FileStat
}

var _ os.FileInfo = (*DirectoryEntry)(nil)

// NewDirectoryEntry creates a DirectoryEntry for an object named `name`.
func NewDirectoryEntry(name string, stat FileStat) DirectoryEntry {
	return DirectoryEntry{name: name, Stat: stat}
}

// Name returns the base name of the directory entry on the file system.
func (d *DirectoryEntry) Name() string {
	return d.name
}

func (d *DirectoryEntry) Size() int64 {
	return d.Stat.Size
}

// Mode returns the file system mode of the entry as an os.FileMode, including
// the type bits.
func (d *DirectoryEntry) Mode() os.FileMode {
	return d.Stat.ModeFlags
}

// ModTime returns the last modification timestamp of the entry.
func (d *DirectoryEntry) ModTime() time.Time {
	return d.Stat.LastModified
}

// IsDir returns true if it's a directory.
func (d *DirectoryEntry) IsDir() bool {
	return d.Stat.IsDir()
}

// Sys returns a copy of the FileStat backing this directory entry.
func (d *DirectoryEntry) Sys() interface{} {
	return d.Stat
}
