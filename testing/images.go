package testing

import (
	"encoding/binary"
	"io"
	"sort"
	"testing"

	c "github.com/dargueta/v6fs/drivers/common"
	"github.com/dargueta/v6fs/drivers/unixv6"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// InodeSpec describes one inode for [ImageBuilder.AddInode].
type InodeSpec struct {
	// Mode holds the file type and permission bits. The allocation flag is
	// added automatically unless Unallocated is set.
	Mode        uint16
	Unallocated bool
	NLink       uint8
	UID         uint8
	GID         uint8
	// Size is the byte size written to the inode. It doesn't have to agree
	// with Blocks.
	Size int64
	// Blocks maps logical block indexes to their contents. Missing blocks are
	// left unallocated (address 0). Contents shorter than a sector are padded
	// with zeroes.
	Blocks       map[int][]byte
	ModifiedTime uint32
}

// Dirent is one entry passed to [ImageBuilder.AddDirectory].
type Dirent struct {
	Name    string
	Inumber unixv6.Inumber
}

// ImageBuilder assembles a V6 image in memory, one structure at a time. Data
// and index sectors are handed out sequentially right after the inode list.
type ImageBuilder struct {
	t            *testing.T
	data         []byte
	totalSectors uint
	inodeSectors uint
	nextSector   uint
	superblock   unixv6.RawSuperblock
}

// NewImageBuilder creates an all-zero image of `totalSectors` sectors with room
// for `inodeSectors` sectors of inodes.
func NewImageBuilder(t *testing.T, totalSectors, inodeSectors uint) *ImageBuilder {
	require.Greater(t, inodeSectors, uint(0), "inode list can't be empty")
	require.Less(
		t,
		inodeSectors+unixv6.InodeStartSector,
		totalSectors,
		"no room for data sectors")

	builder := &ImageBuilder{
		t:            t,
		data:         make([]byte, totalSectors*unixv6.SectorSize),
		totalSectors: totalSectors,
		inodeSectors: inodeSectors,
		nextSector:   unixv6.InodeStartSector + inodeSectors,
	}
	builder.superblock.NumInodeBlocks = uint16(inodeSectors)
	builder.superblock.TotalBlocks = uint16(totalSectors)
	builder.writeStruct(unixv6.SuperblockSector*unixv6.SectorSize, &builder.superblock)
	return builder
}

func (builder *ImageBuilder) writeStruct(offset uint, source any) {
	size := uint(binary.Size(source))
	writer := bytewriter.New(builder.data[offset : offset+size])
	err := binary.Write(writer, binary.LittleEndian, source)
	require.NoErrorf(builder.t, err, "failed to encode %T at offset %d", source, offset)
}

// UpdateSuperblock lets the caller modify the superblock in place.
func (builder *ImageBuilder) UpdateSuperblock(modify func(raw *unixv6.RawSuperblock)) {
	modify(&builder.superblock)
	builder.writeStruct(unixv6.SuperblockSector*unixv6.SectorSize, &builder.superblock)
}

// ReserveInodes puts `inumbers` in the superblock's inode hint list.
func (builder *ImageBuilder) ReserveInodes(inumbers ...unixv6.Inumber) {
	builder.UpdateSuperblock(func(raw *unixv6.RawSuperblock) {
		for _, inumber := range inumbers {
			require.Less(builder.t, int(raw.NumIlistEntries), len(raw.InumberList))
			raw.InumberList[raw.NumIlistEntries] = inumber
			raw.NumIlistEntries++
		}
	})
}

// AllocSector returns the next unused sector.
func (builder *ImageBuilder) AllocSector() unixv6.BlockNum {
	require.Less(builder.t, builder.nextSector, builder.totalSectors, "image is full")
	sector := builder.nextSector
	builder.nextSector++
	return unixv6.BlockNum(sector)
}

// WriteSector copies `contents` to the beginning of `sector`. The rest of the
// sector is left alone.
func (builder *ImageBuilder) WriteSector(sector unixv6.BlockNum, contents []byte) {
	require.LessOrEqual(builder.t, len(contents), unixv6.SectorSize)
	require.Less(builder.t, uint(sector), builder.totalSectors)

	start := uint(sector) * unixv6.SectorSize
	writer := bytewriter.New(builder.data[start : start+unixv6.SectorSize])
	_, err := writer.Write(contents)
	require.NoError(builder.t, err)
}

// WriteTable writes an index sector.
func (builder *ImageBuilder) WriteTable(
	sector unixv6.BlockNum, table *[unixv6.AddressesPerTable]unixv6.BlockNum,
) {
	builder.writeStruct(uint(sector)*unixv6.SectorSize, table)
}

// WriteInode writes a raw inode into its slot in the inode list.
func (builder *ImageBuilder) WriteInode(inumber unixv6.Inumber, raw unixv6.RawInode) {
	require.GreaterOrEqual(builder.t, int(inumber), 1)
	require.LessOrEqual(
		builder.t, uint(inumber), builder.inodeSectors*unixv6.InodesPerSector)

	offset := unixv6.InodeStartSector*unixv6.SectorSize +
		(uint(inumber)-1)*unixv6.InodeSize
	builder.writeStruct(offset, &raw)
}

// AddInode lays out the data and index sectors described by `spec` and writes
// the inode. The addressing mode is picked from Size the same way the file
// system does: small if fewer than 8 whole blocks, large otherwise.
func (builder *ImageBuilder) AddInode(inumber unixv6.Inumber, spec InodeSpec) unixv6.RawInode {
	raw := unixv6.RawInode{
		Flags:    spec.Mode,
		NLink:    spec.NLink,
		UID:      spec.UID,
		GID:      spec.GID,
		SizeHigh: uint8(spec.Size >> 16),
		SizeLow:  uint16(spec.Size),
		ModifiedTime: [2]uint16{
			uint16(spec.ModifiedTime >> 16), uint16(spec.ModifiedTime),
		},
	}
	if !spec.Unallocated {
		raw.Flags |= unixv6.FlagIsAllocated
	}

	isLarge := spec.Size/unixv6.SectorSize >= unixv6.NumAddressSlots
	if isLarge {
		raw.Flags |= unixv6.FlagIsLargeFile
		builder.layOutLargeFile(&raw, spec.Blocks)
	} else {
		for _, index := range sortedKeys(spec.Blocks) {
			contents := spec.Blocks[index]
			require.Lessf(
				builder.t, index, unixv6.NumAddressSlots, "block %d of small file", index)
			raw.Addr[index] = builder.AllocSector()
			builder.WriteSector(raw.Addr[index], contents)
		}
	}

	builder.WriteInode(inumber, raw)
	return raw
}

func (builder *ImageBuilder) layOutLargeFile(raw *unixv6.RawInode, blocks map[int][]byte) {
	const perTable = unixv6.AddressesPerTable
	const singlyCapacity = unixv6.NumSinglyIndirectSlots * perTable

	singly := map[int]*[perTable]unixv6.BlockNum{}
	var doublyFirst *[perTable]unixv6.BlockNum
	doublySecond := map[int]*[perTable]unixv6.BlockNum{}

	getTable := func(
		tables map[int]*[perTable]unixv6.BlockNum, index int, pointer *unixv6.BlockNum,
	) *[perTable]unixv6.BlockNum {
		table, ok := tables[index]
		if !ok {
			table = &[perTable]unixv6.BlockNum{}
			tables[index] = table
			*pointer = builder.AllocSector()
		}
		return table
	}

	for _, index := range sortedKeys(blocks) {
		contents := blocks[index]
		sector := builder.AllocSector()
		builder.WriteSector(sector, contents)

		if index < singlyCapacity {
			table := getTable(singly, index/perTable, &raw.Addr[index/perTable])
			table[index%perTable] = sector
			continue
		}

		remainder := index - singlyCapacity
		require.Less(builder.t, remainder/perTable, perTable, "block %d too large", index)
		if doublyFirst == nil {
			doublyFirst = &[perTable]unixv6.BlockNum{}
			raw.Addr[unixv6.DoublyIndirectSlot] = builder.AllocSector()
		}
		table := getTable(doublySecond, remainder/perTable, &doublyFirst[remainder/perTable])
		table[remainder%perTable] = sector
	}

	for slot, table := range singly {
		builder.WriteTable(raw.Addr[slot], table)
	}
	if doublyFirst != nil {
		builder.WriteTable(raw.Addr[unixv6.DoublyIndirectSlot], doublyFirst)
		for entry, table := range doublySecond {
			builder.WriteTable(doublyFirst[entry], table)
		}
	}
}

// AddFile writes a plain file with one link holding `contents`.
func (builder *ImageBuilder) AddFile(inumber unixv6.Inumber, contents []byte) unixv6.RawInode {
	return builder.AddInode(inumber, InodeSpec{
		Mode:   unixv6.FileTypePlainFile | 0o644,
		NLink:  1,
		Size:   int64(len(contents)),
		Blocks: SplitIntoBlocks(contents),
	})
}

// AddDirectory writes a directory containing "." and ".." followed by
// `entries`, in that order. The root directory is its own parent.
func (builder *ImageBuilder) AddDirectory(
	inumber, parent unixv6.Inumber, entries ...Dirent,
) unixv6.RawInode {
	all := append([]Dirent{{".", inumber}, {"..", parent}}, entries...)
	contents := make([]byte, len(all)*unixv6.DirentSize)

	for i, entry := range all {
		raw := unixv6.RawDirent{Inumber: entry.Inumber}
		require.LessOrEqual(builder.t, len(entry.Name), unixv6.MaxNameLength)
		copy(raw.Name[:], entry.Name)

		writer := bytewriter.New(contents[i*unixv6.DirentSize : (i+1)*unixv6.DirentSize])
		err := binary.Write(writer, binary.LittleEndian, &raw)
		require.NoError(builder.t, err)
	}

	return builder.AddInode(inumber, InodeSpec{
		Mode:   unixv6.FileTypeDirectory | 0o755,
		NLink:  2,
		Size:   int64(len(contents)),
		Blocks: SplitIntoBlocks(contents),
	})
}

func sortedKeys(blocks map[int][]byte) []int {
	keys := make([]int, 0, len(blocks))
	for key := range blocks {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}

// SplitIntoBlocks cuts `contents` into sector-sized pieces keyed by block index.
func SplitIntoBlocks(contents []byte) map[int][]byte {
	blocks := map[int][]byte{}
	for start := 0; start < len(contents); start += unixv6.SectorSize {
		end := start + unixv6.SectorSize
		if end > len(contents) {
			end = len(contents)
		}
		blocks[start/unixv6.SectorSize] = contents[start:end]
	}
	return blocks
}

// Bytes returns a copy of the image built so far.
func (builder *ImageBuilder) Bytes() []byte {
	return append([]byte(nil), builder.data...)
}

// Stream returns a writable stream over a copy of the image. Writes to it
// don't affect the builder.
func (builder *ImageBuilder) Stream() io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(builder.Bytes())
}

// Device returns a sector device over a copy of the image.
func (builder *ImageBuilder) Device() *c.SectorDevice {
	return c.NewSectorDevice(
		builder.Stream(), builder.totalSectors, unixv6.SectorSize, 0)
}

// Open mounts a copy of the image, failing the test if it can't.
func (builder *ImageBuilder) Open(options unixv6.Options) *unixv6.FileSystem {
	fs, err := unixv6.Open(builder.Device(), options)
	require.NoError(builder.t, err, "failed to open test image")
	return fs
}

// OpenInstrumented is like [ImageBuilder.Open] but puts an [InstrumentedDevice]
// between the file system and the image. Its counters start at zero after the
// superblock has been read.
func (builder *ImageBuilder) OpenInstrumented(
	options unixv6.Options,
) (*unixv6.FileSystem, *InstrumentedDevice) {
	device := NewInstrumentedDevice(builder.Device())
	fs, err := unixv6.Open(device, options)
	require.NoError(builder.t, err, "failed to open test image")
	device.ResetCounts()
	return fs, device
}
