package unixv6

import (
	"fmt"

	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
)

// DirEntry is one name in a directory and the inode it points to.
type DirEntry struct {
	Inumber Inumber
	Name    string
}

// openDirectory fetches `dirInumber` and makes sure it's an allocated
// directory whose size is a whole number of entries.
func (fs *FileSystem) openDirectory(dirInumber Inumber) (Inode, error) {
	inode, err := fs.GetInode(dirInumber)
	if err != nil {
		return Inode{}, err
	}

	if !inode.IsAllocated() {
		return Inode{}, v6fs.ErrNotAllocated.WithMessage(
			fmt.Sprintf("directory inode %d", dirInumber))
	}
	if !inode.IsDir() {
		return Inode{}, v6fs.ErrNotADirectory.WithMessage(
			fmt.Sprintf("inode %d", dirInumber))
	}
	if inode.Size()%DirentSize != 0 {
		return Inode{}, v6fs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"directory %d is %d bytes, not a multiple of the entry size %d",
				dirInumber,
				inode.Size(),
				DirentSize))
	}
	return inode, nil
}

// scanDirectory calls `visit` on every live entry of directory `dirInumber`,
// in on-disk order, until it returns false. Free slots (inumber 0) are skipped.
// A failure to read any block aborts the scan.
func (fs *FileSystem) scanDirectory(
	dirInumber Inumber, visit func(raw *RawDirent) bool,
) error {
	inode, err := fs.openDirectory(dirInumber)
	if err != nil {
		return err
	}

	numBlocks := c.LogicalBlock(inode.NumBlocks())
	buffer := make([]byte, SectorSize)
	var raw RawDirent

	for block := c.LogicalBlock(0); block < numBlocks; block++ {
		validBytes, err := fs.GetBlock(dirInumber, block, buffer)
		if err != nil {
			return v6fs.CastToDriverError(err).WithMessage(
				fmt.Sprintf("reading block %d of directory %d", block, dirInumber))
		}

		numEntries := validBytes / DirentSize
		for i := 0; i < numEntries; i++ {
			err = decodeRaw(buffer[i*DirentSize:(i+1)*DirentSize], &raw)
			if err != nil {
				return err
			}
			if raw.Inumber == 0 {
				continue
			}
			if !visit(&raw) {
				return nil
			}
		}
	}
	return nil
}

// FindName looks up `name` in directory `dirInumber`. The first matching entry
// wins. Names longer than [MaxNameLength] can never be stored on disk, so they
// fail with [v6fs.ErrNameTooLong] instead of being truncated.
func (fs *FileSystem) FindName(name string, dirInumber Inumber) (DirEntry, error) {
	_, err := EncodeName(name)
	if err != nil {
		return DirEntry{}, err
	}

	var found *DirEntry
	err = fs.scanDirectory(dirInumber, func(raw *RawDirent) bool {
		if DecodeName(raw.Name) != name {
			return true
		}
		found = &DirEntry{Inumber: raw.Inumber, Name: name}
		return false
	})
	if err != nil {
		return DirEntry{}, err
	}

	if found == nil {
		return DirEntry{}, v6fs.ErrNotFound.WithMessage(
			fmt.Sprintf("%q in directory %d", name, dirInumber))
	}
	return *found, nil
}

// ReadDir returns every live entry of directory `dirInumber` in on-disk order,
// including "." and "..".
func (fs *FileSystem) ReadDir(dirInumber Inumber) ([]DirEntry, error) {
	entries := []DirEntry{}
	err := fs.scanDirectory(dirInumber, func(raw *RawDirent) bool {
		entries = append(entries, DirEntry{Inumber: raw.Inumber, Name: DecodeName(raw.Name)})
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
