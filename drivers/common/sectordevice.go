package common

import (
	"fmt"
	"io"

	"github.com/dargueta/v6fs"
)

// SectorDevice is an abstraction layer around a stream to make it look like a
// sector-addressed disk, e.g. a file that can only be read from or written to
// one fixed-size sector at a time.
//
// The exposed fields are for informational purposes only and should never be
// changed.
type SectorDevice struct {
	// SectorSize gives the size of a sector on this device, in bytes.
	SectorSize uint
	// NumSectors is the total number of sectors in this stream.
	NumSectors uint
	// StartOffset is an offset from the beginning of the stream, in bytes, that
	// will be considered the beginning of sector 0 for the device. This is useful
	// for skipping over headers or other volumes stored on the same image.
	StartOffset int64
	stream      io.ReadWriteSeeker
}

var _ SectorIO = (*SectorDevice)(nil)

func NewSectorDevice(
	stream io.ReadWriteSeeker, totalSectors uint, sectorSize uint, startOffset int64,
) *SectorDevice {
	return &SectorDevice{
		StartOffset: startOffset,
		SectorSize:  sectorSize,
		NumSectors:  totalSectors,
		stream:      stream,
	}
}

// NewBasicSectorDevice creates a SectorDevice with 512-byte sectors starting at
// the beginning of `stream`. The sector count is derived from the stream's
// length, rounded down to the nearest whole sector.
func NewBasicSectorDevice(stream io.ReadWriteSeeker) (*SectorDevice, error) {
	totalSectors, err := DetermineSectorCount(stream, 512)
	if err != nil {
		return nil, err
	}
	return NewSectorDevice(stream, totalSectors, 512, 0), nil
}

// DetermineSectorCount gives the total number of sectors in a stream, rounded
// down to the nearest sector.
func DetermineSectorCount(stream io.Seeker, sectorSize uint) (uint, error) {
	offset, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, v6fs.ErrIOFailed.Wrap(err)
	}
	return uint(offset / int64(sectorSize)), nil
}

func (device *SectorDevice) BytesPerSector() uint {
	return device.SectorSize
}

func (device *SectorDevice) TotalSectors() uint {
	return device.NumSectors
}

// SectorToFileOffset converts a sector number into a byte offset into the
// backing I/O stream.
func (device *SectorDevice) SectorToFileOffset(sector PhysicalBlock) (int64, error) {
	if uint(sector) >= device.NumSectors {
		return -1,
			v6fs.ErrIOFailed.WithMessage(
				fmt.Sprintf(
					"invalid sector %d: not in range [0, %d)",
					sector,
					device.NumSectors))
	}
	return device.StartOffset + (int64(sector) * int64(device.SectorSize)), nil
}

// CheckIOBounds checks to see if `dataLength` bytes can be transferred to or
// from `sector`. If the bounds check fails, it returns an error indicating
// exactly what went wrong.
func (device *SectorDevice) CheckIOBounds(sector PhysicalBlock, dataLength uint) error {
	if uint(sector) >= device.NumSectors {
		return v6fs.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"invalid sector %d: not in range [0, %d)",
				sector,
				device.NumSectors))
	}

	if dataLength != device.SectorSize {
		return v6fs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"buffer must be exactly one sector (%d B), got %d",
				device.SectorSize,
				dataLength))
	}
	return nil
}

// seekToSector positions the stream pointer at the byte offset where the given
// sector starts.
func (device *SectorDevice) seekToSector(sector PhysicalBlock) error {
	offset, err := device.SectorToFileOffset(sector)
	if err != nil {
		return err
	}
	_, err = device.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return v6fs.ErrIOFailed.Wrap(err)
	}
	return nil
}

// ReadSector reads one whole sector into `buffer`. If the stream ends before
// the sector is complete, the number of bytes actually read is returned along
// with an error.
func (device *SectorDevice) ReadSector(sector PhysicalBlock, buffer []byte) (int, error) {
	err := device.CheckIOBounds(sector, uint(len(buffer)))
	if err != nil {
		return 0, err
	}

	err = device.seekToSector(sector)
	if err != nil {
		return 0, err
	}

	bytesRead, err := io.ReadFull(device.stream, buffer)
	if err != nil {
		return bytesRead, v6fs.ErrIOFailed.Wrap(
			fmt.Errorf("reading sector %d: %w", sector, err))
	}
	return bytesRead, nil
}

// WriteSector overwrites one whole sector with `data`.
func (device *SectorDevice) WriteSector(sector PhysicalBlock, data []byte) error {
	err := device.CheckIOBounds(sector, uint(len(data)))
	if err != nil {
		return err
	}

	err = device.seekToSector(sector)
	if err != nil {
		return err
	}

	bytesWritten, err := device.stream.Write(data)
	if err != nil {
		return v6fs.ErrIOFailed.Wrap(fmt.Errorf("writing sector %d: %w", sector, err))
	}
	if bytesWritten != len(data) {
		return v6fs.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"short write to sector %d: %d of %d bytes", sector, bytesWritten, len(data)))
	}
	return nil
}
