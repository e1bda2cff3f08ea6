package dedup

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
	"github.com/dargueta/v6fs/drivers/unixv6"
	"github.com/sirupsen/logrus"
)

// FileSource is what the store needs from a file system. [unixv6.FileSystem]
// implements it.
type FileSource interface {
	LookupPath(path string) (unixv6.Inumber, error)
	FileSize(inumber unixv6.Inumber) (int64, error)
	GetBlock(inumber unixv6.Inumber, block c.LogicalBlock, buffer []byte) (int, error)
}

var _ FileSource = (*unixv6.FileSystem)(nil)

// Stats counts what the store has done since it was created.
type Stats struct {
	// Stores is the number of calls to [Store.Add].
	Stores uint64
	// Duplicates is the number of paths rejected as duplicates.
	Duplicates uint64
	// Compares is the number of stored paths a new path was checked against.
	Compares         uint64
	SizeMismatches   uint64
	ChecksumMismatch uint64
	// CompareSuccesses and CompareFailures count byte-for-byte comparisons
	// that found the files identical or different, respectively.
	CompareSuccesses uint64
	CompareFailures  uint64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"%d stores, %d duplicates; %d compares, %d size mismatches, "+
			"%d checksum mismatches, %d compare successes, %d compare failures",
		s.Stores,
		s.Duplicates,
		s.Compares,
		s.SizeMismatches,
		s.ChecksumMismatch,
		s.CompareSuccesses,
		s.CompareFailures)
}

type element struct {
	path        string
	inumber     unixv6.Inumber
	size        int64
	checksum    uint64
	hasChecksum bool
}

// Store is a set of pathnames on one file system. It isn't safe for concurrent
// use, and shares the file system's single-threaded restrictions.
type Store struct {
	source   FileSource
	elements []*element
	byPath   map[string]*element
	stats    Stats
	log      logrus.FieldLogger
}

// New creates an empty store reading files from `source`. If `logger` is nil,
// nothing is logged.
func New(source FileSource, logger logrus.FieldLogger) *Store {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Store{
		source: source,
		byPath: map[string]*element{},
		log:    logger,
	}
}

// Add stores `path`. If `discardDuplicates` is set and a file with the same
// contents is already stored, nothing is stored and false is returned.
//
// Paths that can't be resolved are never stored.
func (store *Store) Add(path string, discardDuplicates bool) (bool, error) {
	store.stats.Stores++

	candidate, err := store.newElement(path)
	if err != nil {
		return false, err
	}

	if discardDuplicates {
		duplicate, err := store.findDuplicate(candidate)
		if err != nil {
			return false, err
		}
		if duplicate != nil {
			store.stats.Duplicates++
			store.log.WithFields(logrus.Fields{
				"path":     path,
				"original": duplicate.path,
			}).Debug("discarding duplicate")
			return false, nil
		}
	}

	store.elements = append(store.elements, candidate)
	if _, exists := store.byPath[path]; !exists {
		store.byPath[path] = candidate
	}
	return true, nil
}

func (store *Store) newElement(path string) (*element, error) {
	inumber, err := store.source.LookupPath(path)
	if err != nil {
		return nil, err
	}
	size, err := store.source.FileSize(inumber)
	if err != nil {
		return nil, err
	}
	return &element{path: path, inumber: inumber, size: size}, nil
}

// findDuplicate returns the first stored element with the same contents as
// `candidate`, or nil if there isn't one.
func (store *Store) findDuplicate(candidate *element) (*element, error) {
	if existing, ok := store.byPath[candidate.path]; ok {
		store.stats.Compares++
		return existing, nil
	}

	for _, existing := range store.elements {
		store.stats.Compares++

		if existing.size != candidate.size {
			store.stats.SizeMismatches++
			continue
		}

		candidateSum, err := store.checksumOf(candidate)
		if err != nil {
			return nil, err
		}
		existingSum, err := store.checksumOf(existing)
		if err != nil {
			return nil, err
		}
		if candidateSum != existingSum {
			store.stats.ChecksumMismatch++
			continue
		}

		same, err := store.sameContents(candidate, existing)
		if err != nil {
			return nil, err
		}
		if same {
			store.stats.CompareSuccesses++
			return existing, nil
		}
		store.stats.CompareFailures++
	}
	return nil, nil
}

func (e *element) numBlocks() c.LogicalBlock {
	return c.LogicalBlock((e.size + unixv6.SectorSize - 1) / unixv6.SectorSize)
}

// readBlock returns the valid bytes of one block of `e`, backed by `buffer`.
func (store *Store) readBlock(e *element, block c.LogicalBlock, buffer []byte) ([]byte, error) {
	valid, err := store.source.GetBlock(e.inumber, block, buffer)
	if err != nil {
		return nil, v6fs.CastToDriverError(err).WithMessage(
			fmt.Sprintf("reading block %d of %q", block, e.path))
	}
	return buffer[:valid], nil
}

func (store *Store) checksumOf(e *element) (uint64, error) {
	if e.hasChecksum {
		return e.checksum, nil
	}

	digest := xxhash.New()
	buffer := make([]byte, unixv6.SectorSize)
	for block := c.LogicalBlock(0); block < e.numBlocks(); block++ {
		data, err := store.readBlock(e, block, buffer)
		if err != nil {
			return 0, err
		}
		digest.Write(data)
	}

	e.checksum = digest.Sum64()
	e.hasChecksum = true
	return e.checksum, nil
}

// sameContents compares two files of the same size block by block, stopping
// at the first difference.
func (store *Store) sameContents(left, right *element) (bool, error) {
	if left.inumber == right.inumber {
		return true, nil
	}

	leftBuffer := make([]byte, unixv6.SectorSize)
	rightBuffer := make([]byte, unixv6.SectorSize)

	for block := c.LogicalBlock(0); block < left.numBlocks(); block++ {
		leftData, err := store.readBlock(left, block, leftBuffer)
		if err != nil {
			return false, err
		}
		rightData, err := store.readBlock(right, block, rightBuffer)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(leftData, rightData) {
			return false, nil
		}
	}
	return true, nil
}

// Stats returns a copy of the store's counters.
func (store *Store) Stats() Stats {
	return store.stats
}

// Len returns the number of paths stored.
func (store *Store) Len() int {
	return len(store.elements)
}
