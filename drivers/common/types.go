// Package common contains definitions of fundamental types and functions used
// by the file system drivers: block numbering and the sector I/O boundary.
package common

// LogicalBlock is a block index relative to the start of a single file.
type LogicalBlock uint

// PhysicalBlock is an absolute sector number on the image.
type PhysicalBlock uint

// SectorIO is the raw sector I/O primitive the drivers sit on top of. Every
// transfer is exactly one sector.
type SectorIO interface {
	// ReadSector fills `buffer` with the contents of `sector` and returns the
	// number of bytes read. `buffer` must be exactly one sector long. A short
	// read is reported with a byte count less than the sector size.
	ReadSector(sector PhysicalBlock, buffer []byte) (int, error)

	// WriteSector overwrites `sector` with `data`, which must be exactly one
	// sector long.
	WriteSector(sector PhysicalBlock, data []byte) error

	BytesPerSector() uint
	TotalSectors() uint
}
