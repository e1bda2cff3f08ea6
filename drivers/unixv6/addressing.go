package unixv6

import (
	"fmt"

	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
	"github.com/dargueta/v6fs/drivers/common/blockcache"
	"github.com/sirupsen/logrus"
)

// AddressingMode says how an inode's address slots are interpreted. It's
// chosen once per inode from the number of whole blocks in the file.
type AddressingMode uint8

const (
	// AddressingDirect means each slot holds the sector of one data block.
	AddressingDirect AddressingMode = iota
	// AddressingIndirect means slots 0-6 hold singly indirect tables and slot 7
	// holds a doubly indirect table.
	AddressingIndirect
)

func (mode AddressingMode) String() string {
	switch mode {
	case AddressingDirect:
		return "direct"
	case AddressingIndirect:
		return "indirect"
	default:
		return fmt.Sprintf("AddressingMode(%d)", uint8(mode))
	}
}

// AddressingMode picks the addressing mode from the inode's size, using the
// truncated block count the same way the kernel did.
func (inode *Inode) AddressingMode() AddressingMode {
	if inode.Size()/SectorSize < NumAddressSlots {
		return AddressingDirect
	}
	return AddressingIndirect
}

// MaxBlocks returns how many logical blocks the inode's addressing mode can
// represent.
func (mode AddressingMode) MaxBlocks() uint {
	if mode == AddressingDirect {
		return NumAddressSlots
	}
	return NumSinglyIndirectSlots*AddressesPerTable + AddressesPerTable*AddressesPerTable
}

type BlockPosLevel uint8

const (
	PosDirect BlockPosLevel = iota
	PosSinglyIndirect
	PosDoublyIndirect
)

// BlockPosition is the path through the address tables to one logical block.
//
//   - PosDirect: Slot is the address slot holding the sector.
//   - PosSinglyIndirect: Slot names the indirect table, Entry the position in it.
//   - PosDoublyIndirect: Slot is always the last slot. Entry is the position in
//     the first-level table, SecondEntry the position in the second-level one.
type BlockPosition struct {
	Level       BlockPosLevel
	Slot        int
	Entry       int
	SecondEntry int
}

// LocateBlock works out where the address of logical block `block` is stored,
// without touching the disk.
func (inode *Inode) LocateBlock(block c.LogicalBlock) (BlockPosition, error) {
	mode := inode.AddressingMode()
	if uint(block) >= mode.MaxBlocks() {
		return BlockPosition{}, v6fs.ErrOutOfRange.WithMessage(
			fmt.Sprintf(
				"block %d of inode %d not in range [0, %d) for %s addressing",
				block,
				inode.Inumber,
				mode.MaxBlocks(),
				mode))
	}

	if mode == AddressingDirect {
		return BlockPosition{Level: PosDirect, Slot: int(block)}, nil
	}

	tableIndex := int(block) / AddressesPerTable
	if tableIndex < NumSinglyIndirectSlots {
		return BlockPosition{
			Level: PosSinglyIndirect,
			Slot:  tableIndex,
			Entry: int(block) - tableIndex*AddressesPerTable,
		}, nil
	}

	remainder := int(block) - NumSinglyIndirectSlots*AddressesPerTable
	positionInFirst := remainder / AddressesPerTable
	return BlockPosition{
		Level:       PosDoublyIndirect,
		Slot:        DoublyIndirectSlot,
		Entry:       positionInFirst,
		SecondEntry: remainder - positionInFirst*AddressesPerTable,
	}, nil
}

// ResolveBlock translates logical block `block` of `inode` into the sector that
// holds its data. A result of 0 means the block was never allocated.
//
// Index sectors are cached: one slot for singly indirect tables and one slot
// for each level of the doubly indirect tree. A failure to read any of them is
// returned as an error; it's never papered over with a default address.
func (fs *FileSystem) ResolveBlock(inode *Inode, block c.LogicalBlock) (BlockNum, error) {
	position, err := inode.LocateBlock(block)
	if err != nil {
		return 0, err
	}

	var address BlockNum

	switch position.Level {
	case PosDirect:
		address = inode.Raw.Addr[position.Slot]

	case PosSinglyIndirect:
		table, err := fs.getAddressTable(fs.singlyCache, inode.Raw.Addr[position.Slot])
		if err != nil {
			return 0, annotateBlockError(err, inode, block, "singly indirect table")
		}
		address = table[position.Entry]

	case PosDoublyIndirect:
		firstTable, err := fs.getAddressTable(
			fs.doublyFirstCache, inode.Raw.Addr[position.Slot])
		if err != nil {
			return 0, annotateBlockError(err, inode, block, "first doubly indirect table")
		}

		secondTable, err := fs.getAddressTable(
			fs.doublySecondCache, firstTable[position.Entry])
		if err != nil {
			return 0, annotateBlockError(err, inode, block, "second doubly indirect table")
		}
		address = secondTable[position.SecondEntry]
	}

	if !fs.superblock.IsValidSector(address) {
		return 0, v6fs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"block %d of inode %d maps to sector %d, past the end of the disk (%d sectors)",
				block,
				inode.Inumber,
				address,
				fs.superblock.Raw.TotalBlocks))
	}
	return address, nil
}

func annotateBlockError(
	err error, inode *Inode, block c.LogicalBlock, what string,
) error {
	return v6fs.CastToDriverError(err).WithMessage(
		fmt.Sprintf("reading %s for block %d of inode %d", what, block, inode.Inumber))
}

// emptyTable stands in for index sectors that were never allocated. Every
// block under an unallocated table is itself unallocated.
var emptyTable = &addressTable{}

// getAddressTable returns the decoded index sector `sector`, going through
// `cache`. Sector 0 is never an index sector; a pointer to it means the table
// doesn't exist.
func (fs *FileSystem) getAddressTable(
	cache *blockcache.Slot[BlockNum, *addressTable], sector BlockNum,
) (*addressTable, error) {
	if sector == 0 {
		return emptyTable, nil
	}
	if !fs.superblock.IsValidSector(sector) {
		return nil, v6fs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("index sector %d is past the end of the disk", sector))
	}
	return cache.Get(sector, fs.fetchAddressTable)
}

func (fs *FileSystem) fetchAddressTable(sector BlockNum) (*addressTable, error) {
	fs.log.WithFields(logrus.Fields{"sector": sector}).Debug("index cache miss")

	buffer := make([]byte, SectorSize)
	err := fs.readSector(sector, buffer)
	if err != nil {
		return nil, err
	}

	table := &addressTable{}
	decodeErr := decodeRaw(buffer, table)
	if decodeErr != nil {
		return nil, decodeErr
	}
	return table, nil
}
