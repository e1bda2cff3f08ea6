package unixv6

import (
	"fmt"

	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
	"github.com/dargueta/v6fs/drivers/common/basicstream"
	"github.com/sirupsen/logrus"
)

// FileSize returns the size in bytes of the file or directory `inumber`.
func (fs *FileSystem) FileSize(inumber Inumber) (int64, error) {
	inode, err := fs.GetInode(inumber)
	if err != nil {
		return 0, err
	}
	return inode.Size(), nil
}

// GetBlock copies logical block `block` of file `inumber` into `buffer` and
// returns the number of valid bytes in it. That's a full sector for every block
// except the last, which only counts the bytes up to the end of the file.
// Blocks that were never allocated read as zeroes.
//
// `buffer` must be at least one sector long. If an error is returned, its
// contents are undefined.
//
// The most recently read block is cached; asking for the same block of the
// same file again doesn't touch the disk.
func (fs *FileSystem) GetBlock(inumber Inumber, block c.LogicalBlock, buffer []byte) (int, error) {
	if len(buffer) < SectorSize {
		return 0, v6fs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("buffer must hold at least %d bytes, got %d", SectorSize, len(buffer)))
	}

	key := dataBlockKey{inumber: inumber, block: block}
	cached, err := fs.dataCache.Get(key, fs.fetchDataBlock)
	if err != nil {
		return 0, err
	}

	copy(buffer, cached.data[:])
	return cached.validBytes, nil
}

func (fs *FileSystem) fetchDataBlock(key dataBlockKey) (*dataBlock, error) {
	logger := fs.log.WithFields(logrus.Fields{
		"inumber": key.inumber,
		"block":   key.block,
	})
	logger.Debug("data cache miss")

	inode, err := fs.GetInode(key.inumber)
	if err != nil {
		return nil, err
	}

	validBytes, err := validBytesInBlock(inode.Size(), key.block)
	if err != nil {
		return nil, v6fs.CastToDriverError(err).WithMessage(
			fmt.Sprintf("inode %d", key.inumber))
	}

	sector, err := fs.ResolveBlock(&inode, key.block)
	if err != nil {
		logger.WithError(err).Debug("block lookup failed")
		return nil, err
	}

	result := &dataBlock{validBytes: validBytes}
	if sector == 0 {
		return result, nil
	}

	readErr := fs.readSector(sector, result.data[:])
	if readErr != nil {
		return nil, readErr.WithMessage(
			fmt.Sprintf("reading block %d of inode %d", key.block, key.inumber))
	}
	return result, nil
}

// validBytesInBlock computes how much of logical block `block` lies inside a
// file of `size` bytes. Blocks entirely past the end of the file are out of
// range, so the result is always in [1, SectorSize].
func validBytesInBlock(size int64, block c.LogicalBlock) (int, error) {
	start := int64(block) * SectorSize
	if start >= size {
		return 0, v6fs.ErrOutOfRange.WithMessage(
			fmt.Sprintf("block %d starts at or past end of file (%d bytes)", block, size))
	}

	remaining := size - start
	if remaining > SectorSize {
		return SectorSize, nil
	}
	return int(remaining), nil
}

// OpenFile returns a read-only stream over the contents of file `inumber`.
// The stream reads through [FileSystem.GetBlock], so it shares the
// FileSystem's caches and must not be used concurrently with it.
func (fs *FileSystem) OpenFile(inumber Inumber) (*basicstream.BasicStream, error) {
	inode, err := fs.GetInode(inumber)
	if err != nil {
		return nil, err
	}
	if !inode.IsAllocated() {
		return nil, v6fs.ErrNotAllocated.WithMessage(fmt.Sprintf("inode %d", inumber))
	}

	fetch := func(index c.LogicalBlock, buffer []byte) (int, error) {
		return fs.GetBlock(inumber, index, buffer)
	}
	return basicstream.New(inode.Size(), SectorSize, fetch)
}
