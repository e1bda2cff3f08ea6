package unixv6

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/v6fs"
)

// Superblock is the parsed, immutable view of sector 1.
type Superblock struct {
	Raw RawSuperblock

	// NumInodes is the number of inodes the inode list has room for.
	NumInodes uint

	// reserved has one bit per inumber, set for every inumber the superblock
	// lists in its inode hint list. Fetching such an inode is refused without
	// touching the disk.
	reserved bitmap.Bitmap
}

// DecodeSuperblock parses a superblock from one raw sector.
func DecodeSuperblock(data []byte) (Superblock, error) {
	if len(data) != SectorSize {
		return Superblock{}, v6fs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("superblock must be %d bytes, got %d", SectorSize, len(data)))
	}

	var raw RawSuperblock
	err := decodeRaw(data, &raw)
	if err != nil {
		return Superblock{}, err
	}

	if raw.NumInodeBlocks == 0 {
		return Superblock{}, v6fs.ErrInvalidFileSystem.WithMessage(
			"superblock says the inode list is empty")
	}

	// The inode list has to fit between the superblock and the end of the disk.
	// An fsize of 0 is tolerated; some tools leave it unset.
	if raw.TotalBlocks != 0 && uint(raw.NumInodeBlocks)+InodeStartSector > uint(raw.TotalBlocks) {
		return Superblock{}, v6fs.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf(
				"inode list of %d sectors doesn't fit on a disk of %d sectors",
				raw.NumInodeBlocks,
				raw.TotalBlocks))
	}

	superblock := Superblock{
		Raw:       raw,
		NumInodes: uint(raw.NumInodeBlocks) * InodesPerSector,
	}

	// Index 0 is unused; inumbers start at 1.
	superblock.reserved = bitmap.New(int(superblock.NumInodes) + 1)

	hintCount := int(raw.NumIlistEntries)
	if hintCount > len(raw.InumberList) {
		hintCount = len(raw.InumberList)
	}
	for _, inumber := range raw.InumberList[:hintCount] {
		if inumber != 0 && uint(inumber) <= superblock.NumInodes {
			superblock.reserved.Set(int(inumber), true)
		}
	}
	return superblock, nil
}

// IsReserved returns true if the superblock's hint list names `inumber`.
func (sb *Superblock) IsReserved(inumber Inumber) bool {
	if uint(inumber) > sb.NumInodes {
		return false
	}
	return sb.reserved.Get(int(inumber))
}

// IsValidInumber returns true if `inumber` falls inside the inode list.
func (sb *Superblock) IsValidInumber(inumber Inumber) bool {
	return inumber >= 1 && uint(inumber) <= sb.NumInodes
}

// IsValidSector returns true if `sector` lies on the disk according to the
// superblock. If the superblock doesn't record the disk size, every sector is
// considered valid and the device does the bounds checking.
func (sb *Superblock) IsValidSector(sector BlockNum) bool {
	return sb.Raw.TotalBlocks == 0 || sector < BlockNum(sb.Raw.TotalBlocks)
}
