package testing

import (
	"fmt"

	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
)

// InstrumentedDevice wraps a [c.SectorIO], counting every transfer and failing
// the ones the test asked it to.
type InstrumentedDevice struct {
	device c.SectorIO

	reads       map[c.PhysicalBlock]int
	totalReads  int
	totalWrites int

	failReads  map[c.PhysicalBlock]bool
	shortReads map[c.PhysicalBlock]bool
	failWrites map[c.PhysicalBlock]bool
}

var _ c.SectorIO = (*InstrumentedDevice)(nil)

func NewInstrumentedDevice(device c.SectorIO) *InstrumentedDevice {
	return &InstrumentedDevice{
		device:     device,
		reads:      map[c.PhysicalBlock]int{},
		failReads:  map[c.PhysicalBlock]bool{},
		shortReads: map[c.PhysicalBlock]bool{},
		failWrites: map[c.PhysicalBlock]bool{},
	}
}

func (device *InstrumentedDevice) BytesPerSector() uint {
	return device.device.BytesPerSector()
}

func (device *InstrumentedDevice) TotalSectors() uint {
	return device.device.TotalSectors()
}

func (device *InstrumentedDevice) ReadSector(sector c.PhysicalBlock, buffer []byte) (int, error) {
	device.reads[sector]++
	device.totalReads++

	if device.failReads[sector] {
		return 0, v6fs.ErrIOFailed.WithMessage(
			fmt.Sprintf("injected read failure on sector %d", sector))
	}

	n, err := device.device.ReadSector(sector, buffer)
	if err != nil {
		return n, err
	}
	if device.shortReads[sector] {
		return n / 2, nil
	}
	return n, nil
}

func (device *InstrumentedDevice) WriteSector(sector c.PhysicalBlock, data []byte) error {
	device.totalWrites++
	if device.failWrites[sector] {
		return v6fs.ErrIOFailed.WithMessage(
			fmt.Sprintf("injected write failure on sector %d", sector))
	}
	return device.device.WriteSector(sector, data)
}

// FailReads makes every read of `sectors` fail outright.
func (device *InstrumentedDevice) FailReads(sectors ...c.PhysicalBlock) {
	for _, sector := range sectors {
		device.failReads[sector] = true
	}
}

// ShortReads makes every read of `sectors` report half a sector transferred.
func (device *InstrumentedDevice) ShortReads(sectors ...c.PhysicalBlock) {
	for _, sector := range sectors {
		device.shortReads[sector] = true
	}
}

func (device *InstrumentedDevice) FailWrites(sectors ...c.PhysicalBlock) {
	for _, sector := range sectors {
		device.failWrites[sector] = true
	}
}

// ClearFaults undoes all previous calls to FailReads, ShortReads, and
// FailWrites.
func (device *InstrumentedDevice) ClearFaults() {
	device.failReads = map[c.PhysicalBlock]bool{}
	device.shortReads = map[c.PhysicalBlock]bool{}
	device.failWrites = map[c.PhysicalBlock]bool{}
}

// ReadCount returns how many times `sector` was read since the last reset.
func (device *InstrumentedDevice) ReadCount(sector c.PhysicalBlock) int {
	return device.reads[sector]
}

func (device *InstrumentedDevice) TotalReads() int {
	return device.totalReads
}

func (device *InstrumentedDevice) TotalWrites() int {
	return device.totalWrites
}

func (device *InstrumentedDevice) ResetCounts() {
	device.reads = map[c.PhysicalBlock]int{}
	device.totalReads = 0
	device.totalWrites = 0
}
