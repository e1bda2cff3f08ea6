package unixv6

import (
	"fmt"

	"github.com/dargueta/v6fs"
	"github.com/sirupsen/logrus"
)

// Inode is a decoded on-disk inode along with the number it was fetched by.
type Inode struct {
	Inumber Inumber
	Raw     RawInode
}

func (inode *Inode) IsAllocated() bool {
	return inode.Raw.Flags&FlagIsAllocated != 0
}

func (inode *Inode) FileType() uint16 {
	return inode.Raw.Flags & FileTypeMask
}

func (inode *Inode) IsDir() bool {
	return inode.FileType() == FileTypeDirectory
}

func (inode *Inode) IsFile() bool {
	return inode.FileType() == FileTypePlainFile
}

// Size returns the size of the file in bytes, combining the two halves of the
// on-disk size field.
func (inode *Inode) Size() int64 {
	return int64(inode.Raw.SizeHigh)<<16 | int64(inode.Raw.SizeLow)
}

// SetSize splits a byte count into the two halves of the on-disk size field.
// V6 sizes are 24 bits wide.
func (inode *Inode) SetSize(size int64) error {
	if size < 0 || size >= 1<<24 {
		return v6fs.ErrOutOfRange.WithMessage(
			fmt.Sprintf("file size %d doesn't fit in 24 bits", size))
	}
	inode.Raw.SizeHigh = uint8(size >> 16)
	inode.Raw.SizeLow = uint16(size)
	return nil
}

// NumBlocks returns the number of sectors needed to hold the file's data,
// counting a partial final sector.
func (inode *Inode) NumBlocks() int64 {
	return (inode.Size() + SectorSize - 1) / SectorSize
}

// Stat converts the inode into a file system independent [v6fs.FileStat].
func (inode *Inode) Stat() v6fs.FileStat {
	return v6fs.FileStat{
		InodeNumber:  uint64(inode.Inumber),
		Nlinks:       uint64(inode.Raw.NLink),
		ModeFlags:    rawModeToFileMode(inode.Raw.Flags),
		Uid:          uint32(inode.Raw.UID),
		Gid:          uint32(inode.Raw.GID),
		Size:         inode.Size(),
		BlockSize:    SectorSize,
		NumBlocks:    inode.NumBlocks(),
		LastAccessed: deserializeTimestamp(inode.Raw.AccessedTime),
		LastModified: deserializeTimestamp(inode.Raw.ModifiedTime),
	}
}

// inodeLocation gives the sector holding `inumber` and the inode's index within
// that sector.
func inodeLocation(inumber Inumber) (BlockNum, int) {
	index := int(inumber) - 1
	return BlockNum(InodeStartSector + index/InodesPerSector), index % InodesPerSector
}

func (fs *FileSystem) checkInumber(inumber Inumber) v6fs.DriverError {
	if !fs.superblock.IsValidInumber(inumber) {
		return v6fs.ErrNotFound.WithMessage(
			fmt.Sprintf(
				"inode %d not in range [1, %d]", inumber, fs.superblock.NumInodes))
	}
	if fs.superblock.IsReserved(inumber) {
		return v6fs.ErrNotFound.WithMessage(
			fmt.Sprintf("inode %d is in the superblock's reserved list", inumber))
	}
	return nil
}

// GetInode fetches the inode numbered `inumber`. Inumbers outside the inode
// list or named in the superblock's reserved list fail with
// [v6fs.ErrNotFound] without reading anything from the disk.
//
// The most recently fetched inode is cached; fetching it again doesn't touch
// the disk.
func (fs *FileSystem) GetInode(inumber Inumber) (Inode, error) {
	err := fs.checkInumber(inumber)
	if err != nil {
		return Inode{}, err
	}
	return fs.inodeCache.Get(inumber, fs.fetchInode)
}

func (fs *FileSystem) fetchInode(inumber Inumber) (Inode, error) {
	sector, slot := inodeLocation(inumber)
	fs.log.WithFields(logrus.Fields{
		"inumber": inumber,
		"sector":  sector,
	}).Debug("inode cache miss")

	buffer := make([]byte, SectorSize)
	err := fs.readSector(sector, buffer)
	if err != nil {
		return Inode{}, err.WithMessage(fmt.Sprintf("failed to read inode %d", inumber))
	}

	inode := Inode{Inumber: inumber}
	decodeErr := decodeRaw(buffer[slot*InodeSize:(slot+1)*InodeSize], &inode.Raw)
	if decodeErr != nil {
		return Inode{}, decodeErr
	}
	return inode, nil
}

// WriteInode persists `inode` back to its slot in the inode list. The rest of
// the sector is preserved.
func (fs *FileSystem) WriteInode(inode Inode) error {
	err := fs.checkInumber(inode.Inumber)
	if err != nil {
		return err
	}
	if fs.readOnly {
		return v6fs.ErrReadOnlyFileSystem.WithMessage(
			fmt.Sprintf("can't write inode %d", inode.Inumber))
	}

	sector, slot := inodeLocation(inode.Inumber)
	buffer := make([]byte, SectorSize)
	err = fs.readSector(sector, buffer)
	if err != nil {
		return err.WithMessage(fmt.Sprintf("failed to read inode %d", inode.Inumber))
	}

	encodeErr := encodeRaw(buffer[slot*InodeSize:(slot+1)*InodeSize], &inode.Raw)
	if encodeErr != nil {
		return encodeErr
	}

	err = fs.writeSector(sector, buffer)
	if err != nil {
		return err.WithMessage(fmt.Sprintf("failed to write inode %d", inode.Inumber))
	}
	return nil
}
