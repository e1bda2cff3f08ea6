package unixv6

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dargueta/v6fs"
	"github.com/noxer/bytewriter"
)

type Inumber uint16

// BlockNum is a sector number as stored on disk, in inodes and index tables.
type BlockNum uint16

const (
	SectorSize       = 512
	SuperblockSector = 1
	InodeStartSector = 2
	RootInumber      = Inumber(1)

	InodeSize         = 32
	InodesPerSector   = SectorSize / InodeSize
	DirentSize        = 16
	MaxNameLength     = 14
	NumAddressSlots   = 8
	AddressesPerTable = SectorSize / 2

	// The last address slot of a large file points to a doubly indirect table;
	// the other seven point to singly indirect tables.
	NumSinglyIndirectSlots = NumAddressSlots - 1
	DoublyIndirectSlot     = NumAddressSlots - 1
)

type RawSuperblock struct {
	NumInodeBlocks     uint16        // isize
	TotalBlocks        uint16        // fsize
	NumFreeListEntries uint16        // nfree
	FreeList           [100]BlockNum // free
	NumIlistEntries    uint16        // ninode
	InumberList        [100]Inumber  // inode
	FLock              uint8         // flock
	ILock              uint8         // ilock
	FModFlags          uint8         // fmod
	ReadOnly           uint8         // ronly
	ModifiedAt         [2]uint16     // time
	Padding            [48]uint16    // pad
}

type RawInode struct {
	Flags        uint16
	NLink        uint8
	UID          uint8
	GID          uint8
	SizeHigh     uint8
	SizeLow      uint16
	Addr         [NumAddressSlots]BlockNum
	AccessedTime [2]uint16
	ModifiedTime [2]uint16
}

type RawDirent struct {
	Inumber Inumber
	Name    [MaxNameLength]byte
}

const (
	FlagIsAllocated     = 0o100000 // Collides with S_IFREG
	FileTypeMask        = 0o060000
	FileTypeBlockDevice = 0o060000
	FileTypeDirectory   = 0o040000
	FileTypeCharDevice  = 0o020000
	FileTypePlainFile   = 0o000000
	FlagIsLargeFile     = 0o010000 // Collides with S_IFIFO
	FlagSetUID          = 0o004000 // S_ISUID
	FlagSetGID          = 0o002000 // S_ISGID
	FlagSticky          = 0o001000 // S_ISVTX
	PermissionMask      = 0o000777
)

// decodeRaw unpacks a little-endian on-disk structure from `data`.
func decodeRaw(data []byte, target any) error {
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, target)
	if err != nil {
		return v6fs.ErrFileSystemCorrupted.Wrap(err)
	}
	return nil
}

// encodeRaw packs `source` into `data`, which must be exactly large enough to
// hold it.
func encodeRaw(data []byte, source any) error {
	writer := bytewriter.New(data)
	err := binary.Write(writer, binary.LittleEndian, source)
	if err != nil {
		return v6fs.ErrInvalidArgument.Wrap(err)
	}
	return nil
}

// deserializeTimestamp converts a PDP-11 two-word timestamp (high word first)
// into a time.Time.
func deserializeTimestamp(words [2]uint16) time.Time {
	return time.Unix(int64(uint32(words[0])<<16|uint32(words[1])), 0)
}

// rawModeToFileMode converts V6 mode bits into an [os.FileMode].
func rawModeToFileMode(flags uint16) os.FileMode {
	mode := os.FileMode(flags & PermissionMask)

	switch flags & FileTypeMask {
	case FileTypeDirectory:
		mode |= os.ModeDir
	case FileTypeCharDevice:
		mode |= os.ModeDevice | os.ModeCharDevice
	case FileTypeBlockDevice:
		mode |= os.ModeDevice
	}

	if flags&FlagSetUID != 0 {
		mode |= os.ModeSetuid
	}
	if flags&FlagSetGID != 0 {
		mode |= os.ModeSetgid
	}
	if flags&FlagSticky != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// DecodeName converts a NUL-padded on-disk name into a string.
func DecodeName(raw [MaxNameLength]byte) string {
	end := bytes.IndexByte(raw[:], 0)
	if end < 0 {
		end = len(raw)
	}
	return string(raw[:end])
}

// EncodeName converts a string into its on-disk representation. Names longer
// than [MaxNameLength] bytes are rejected rather than truncated, and names
// can't be empty or contain a slash or NUL.
func EncodeName(name string) ([MaxNameLength]byte, error) {
	var raw [MaxNameLength]byte

	if name == "" {
		return raw, v6fs.ErrInvalidArgument.WithMessage("name can't be empty")
	}
	if len(name) > MaxNameLength {
		return raw, v6fs.ErrNameTooLong.WithMessage(
			fmt.Sprintf(
				"%q is %d bytes, limit is %d", name, len(name), MaxNameLength))
	}
	if strings.ContainsAny(name, "/\x00") {
		return raw, v6fs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("name %q contains a slash or null byte", name))
	}

	copy(raw[:], name)
	return raw, nil
}
