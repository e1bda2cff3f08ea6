package unixv6

import (
	"fmt"

	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
	"github.com/sirupsen/logrus"
)

// Remove deletes one link to the regular file `inumber`.
//
// If this is the last link, every block holding file data (including a partial
// final block) is overwritten with zeroes; blocks that were never allocated
// are skipped. The inode itself is left alone. If the file has other links,
// only the link count is decremented and written back to the inode list.
//
// There's no rollback: if zeroing fails partway through, the blocks already
// zeroed stay that way and the error is returned.
func (fs *FileSystem) Remove(inumber Inumber) error {
	if fs.readOnly {
		return v6fs.ErrReadOnlyFileSystem.WithMessage(
			fmt.Sprintf("can't remove inode %d", inumber))
	}

	inode, err := fs.GetInode(inumber)
	if err != nil {
		return err
	}

	if !inode.IsAllocated() {
		return v6fs.ErrNotAllocated.WithMessage(fmt.Sprintf("inode %d", inumber))
	}
	if inode.IsDir() {
		return v6fs.ErrIsADirectory.WithMessage(
			fmt.Sprintf("inode %d can't be removed", inumber))
	}

	logger := fs.log.WithFields(logrus.Fields{
		"inumber": inumber,
		"nlink":   inode.Raw.NLink,
	})

	if inode.Raw.NLink > 1 {
		logger.Debug("dropping one link")
		inode.Raw.NLink--
		return fs.WriteInode(inode)
	}

	logger.Debug("zeroing file contents")
	return fs.zeroFileBlocks(&inode)
}

func (fs *FileSystem) zeroFileBlocks(inode *Inode) error {
	zeroes := make([]byte, SectorSize)
	numBlocks := c.LogicalBlock(inode.NumBlocks())

	// Resolve every address before writing anything. Zeroing a data block can
	// never change an index sector, but resolving first means a corrupt table
	// fails the removal before any data is lost.
	sectors := make([]BlockNum, 0, numBlocks)
	for block := c.LogicalBlock(0); block < numBlocks; block++ {
		sector, err := fs.ResolveBlock(inode, block)
		if err != nil {
			return err
		}
		sectors = append(sectors, sector)
	}

	for block, sector := range sectors {
		if sector == 0 {
			continue
		}

		err := fs.writeSector(sector, zeroes)
		if err != nil {
			return err.WithMessage(
				fmt.Sprintf("zeroing block %d of inode %d", block, inode.Inumber))
		}
	}
	return nil
}
