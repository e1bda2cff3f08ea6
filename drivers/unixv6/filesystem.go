package unixv6

import (
	"fmt"
	"io"

	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
	"github.com/dargueta/v6fs/drivers/common/blockcache"
	"github.com/sirupsen/logrus"
)

// Options controls how a [FileSystem] is opened.
type Options struct {
	// Logger receives debug output about cache misses and failures. If nil,
	// nothing is logged.
	Logger logrus.FieldLogger

	// ReadOnly makes every operation that would write to the image fail with
	// [v6fs.ErrReadOnlyFileSystem].
	ReadOnly bool
}

// dataBlockKey identifies one logical block of one file.
type dataBlockKey struct {
	inumber Inumber
	block   c.LogicalBlock
}

type dataBlock struct {
	validBytes int
	data       [SectorSize]byte
}

// addressTable is a decoded indirect sector.
type addressTable [AddressesPerTable]BlockNum

// FileSystem is an open V6 image: the sector device, the parsed superblock,
// and the caches that sit between them and the callers.
type FileSystem struct {
	device     c.SectorIO
	superblock Superblock
	readOnly   bool
	log        logrus.FieldLogger

	inodeCache        *blockcache.Slot[Inumber, Inode]
	singlyCache       *blockcache.Slot[BlockNum, *addressTable]
	doublyFirstCache  *blockcache.Slot[BlockNum, *addressTable]
	doublySecondCache *blockcache.Slot[BlockNum, *addressTable]
	dataCache         *blockcache.Slot[dataBlockKey, *dataBlock]
}

// CacheStats reports the hit and miss counts of each cache on a [FileSystem].
type CacheStats struct {
	Inode        blockcache.Stats
	Singly       blockcache.Stats
	DoublyFirst  blockcache.Stats
	DoublySecond blockcache.Stats
	Data         blockcache.Stats
}

func newDiscardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Open reads the superblock from `device` and returns a ready-to-use
// [FileSystem]. The device must use 512-byte sectors.
func Open(device c.SectorIO, options Options) (*FileSystem, error) {
	if device.BytesPerSector() != SectorSize {
		return nil, v6fs.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf(
				"sector size must be %d bytes, device uses %d",
				SectorSize,
				device.BytesPerSector()))
	}

	logger := options.Logger
	if logger == nil {
		logger = newDiscardLogger()
	}

	fs := &FileSystem{
		device:            device,
		readOnly:          options.ReadOnly,
		log:               logger,
		inodeCache:        blockcache.New[Inumber, Inode](),
		singlyCache:       blockcache.New[BlockNum, *addressTable](),
		doublyFirstCache:  blockcache.New[BlockNum, *addressTable](),
		doublySecondCache: blockcache.New[BlockNum, *addressTable](),
		dataCache:         blockcache.New[dataBlockKey, *dataBlock](),
	}

	buffer := make([]byte, SectorSize)
	err := fs.readSector(SuperblockSector, buffer)
	if err != nil {
		return nil, err.WithMessage("failed to read superblock")
	}

	superblock, decodeErr := DecodeSuperblock(buffer)
	if decodeErr != nil {
		return nil, decodeErr
	}
	fs.superblock = superblock

	fs.log.WithFields(logrus.Fields{
		"inodes":       fs.superblock.NumInodes,
		"total_blocks": fs.superblock.Raw.TotalBlocks,
		"read_only":    fs.readOnly,
	}).Debug("opened file system")
	return fs, nil
}

// OpenStream is a convenience wrapper around [Open] for images held in any
// seekable stream, such as an [os.File].
func OpenStream(stream io.ReadWriteSeeker, options Options) (*FileSystem, error) {
	device, err := c.NewBasicSectorDevice(stream)
	if err != nil {
		return nil, err
	}
	return Open(device, options)
}

// Superblock returns the parsed superblock of the image.
func (fs *FileSystem) Superblock() Superblock {
	return fs.superblock
}

func (fs *FileSystem) IsReadOnly() bool {
	return fs.readOnly
}

// CacheStats returns the hit and miss counts of every cache.
func (fs *FileSystem) CacheStats() CacheStats {
	return CacheStats{
		Inode:        fs.inodeCache.Stats(),
		Singly:       fs.singlyCache.Stats(),
		DoublyFirst:  fs.doublyFirstCache.Stats(),
		DoublySecond: fs.doublySecondCache.Stats(),
		Data:         fs.dataCache.Stats(),
	}
}

// InvalidateCaches empties every cache. Anything written to the device behind
// the FileSystem's back must be followed by a call to this.
func (fs *FileSystem) InvalidateCaches() {
	fs.inodeCache.Invalidate()
	fs.singlyCache.Invalidate()
	fs.doublyFirstCache.Invalidate()
	fs.doublySecondCache.Invalidate()
	fs.dataCache.Invalidate()
}

// readSector reads one whole sector into `buffer`. Anything short of a full
// sector is an I/O failure.
func (fs *FileSystem) readSector(sector BlockNum, buffer []byte) v6fs.DriverError {
	n, err := fs.device.ReadSector(c.PhysicalBlock(sector), buffer)
	if err != nil {
		fs.log.WithError(err).WithField("sector", sector).Debug("sector read failed")
		return v6fs.CastToDriverError(err)
	}
	if n != SectorSize {
		return v6fs.ErrIOFailed.WithMessage(
			fmt.Sprintf("short read of sector %d: got %d of %d bytes", sector, n, SectorSize))
	}
	return nil
}

// writeSector overwrites one sector. Every cache is dropped afterwards, since
// any of them could hold a copy of what was just overwritten.
func (fs *FileSystem) writeSector(sector BlockNum, data []byte) v6fs.DriverError {
	if fs.readOnly {
		return v6fs.ErrReadOnlyFileSystem.WithMessage(
			fmt.Sprintf("can't write sector %d", sector))
	}

	err := fs.device.WriteSector(c.PhysicalBlock(sector), data)
	fs.InvalidateCaches()
	if err != nil {
		fs.log.WithError(err).WithField("sector", sector).Debug("sector write failed")
		return v6fs.CastToDriverError(err)
	}
	return nil
}
