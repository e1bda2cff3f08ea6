package unixv6

import (
	"fmt"
	"strings"

	"github.com/dargueta/v6fs"
)

// LookupPath returns the inumber of the object at absolute path `path`,
// starting from the root directory and looking up one component at a time.
// Repeated slashes are ignored, so "/" is the root directory. A trailing
// slash requires the final component to be a directory.
//
// The first component that can't be resolved fails the whole lookup: a
// missing name gives [v6fs.ErrNotFound], a non-directory in the middle of
// the path gives [v6fs.ErrNotADirectory], and a component longer than
// [MaxNameLength] gives [v6fs.ErrNameTooLong].
func (fs *FileSystem) LookupPath(path string) (Inumber, error) {
	if !strings.HasPrefix(path, "/") {
		return 0, v6fs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("path %q isn't absolute", path))
	}

	current := RootInumber
	for _, component := range strings.Split(path[1:], "/") {
		if component == "" {
			continue
		}

		entry, err := fs.FindName(component, current)
		if err != nil {
			return 0, v6fs.CastToDriverError(err).WithMessage(
				fmt.Sprintf("resolving %q", path))
		}
		current = entry.Inumber
	}

	if current != RootInumber && strings.HasSuffix(path, "/") {
		inode, err := fs.GetInode(current)
		if err != nil {
			return 0, v6fs.CastToDriverError(err).WithMessage(
				fmt.Sprintf("resolving %q", path))
		}
		if !inode.IsDir() {
			return 0, v6fs.ErrNotADirectory.WithMessage(
				fmt.Sprintf("resolving %q", path))
		}
	}
	return current, nil
}

// pathToInode resolves `path` and fetches its inode.
func (fs *FileSystem) pathToInode(path string) (Inode, error) {
	inumber, err := fs.LookupPath(path)
	if err != nil {
		return Inode{}, err
	}
	return fs.GetInode(inumber)
}
