package unixv6

import (
	"fmt"
	"io"

	"github.com/dargueta/v6fs"
)

// Stat returns information about the object at absolute path `path`.
func (fs *FileSystem) Stat(path string) (v6fs.FileStat, error) {
	inode, err := fs.pathToInode(path)
	if err != nil {
		return v6fs.FileStat{}, err
	}
	return inode.Stat(), nil
}

// ReadFile returns the entire contents of the file at `path`. Directories
// can't be read this way.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	inode, err := fs.pathToInode(path)
	if err != nil {
		return nil, err
	}
	if inode.IsDir() {
		return nil, v6fs.ErrIsADirectory.WithMessage(path)
	}

	stream, err := fs.OpenFile(inode.Inumber)
	if err != nil {
		return nil, err
	}

	contents := make([]byte, stream.Size())
	_, err = io.ReadFull(stream, contents)
	if err != nil {
		return nil, v6fs.CastToDriverError(err).WithMessage(
			fmt.Sprintf("reading %q", path))
	}
	return contents, nil
}

// ReadDirPath lists the directory at `path`, including "." and "..".
func (fs *FileSystem) ReadDirPath(path string) ([]v6fs.DirectoryEntry, error) {
	dirInumber, err := fs.LookupPath(path)
	if err != nil {
		return nil, err
	}

	dirents, err := fs.ReadDir(dirInumber)
	if err != nil {
		return nil, err
	}

	output := make([]v6fs.DirectoryEntry, 0, len(dirents))
	for _, dirent := range dirents {
		inode, err := fs.GetInode(dirent.Inumber)
		if err != nil {
			return nil, v6fs.CastToDriverError(err).WithMessage(
				fmt.Sprintf("entry %q of %q", dirent.Name, path))
		}
		output = append(output, v6fs.NewDirectoryEntry(dirent.Name, inode.Stat()))
	}
	return output, nil
}

// RemovePath is [FileSystem.Remove] on the file at `path`. The directory entry
// pointing to it is left in place.
func (fs *FileSystem) RemovePath(path string) error {
	inumber, err := fs.LookupPath(path)
	if err != nil {
		return err
	}
	return fs.Remove(inumber)
}
