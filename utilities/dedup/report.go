package dedup

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// Entry is one stored path, as written to a CSV report.
type Entry struct {
	Path    string `csv:"path"`
	Inumber uint16 `csv:"inumber"`
	Size    int64  `csv:"size"`
	// Checksum is the hex xxHash64 of the file's contents, or empty if the
	// store never needed it.
	Checksum string `csv:"xxhash64"`
}

// Entries returns every stored path in the order it was added.
func (store *Store) Entries() []Entry {
	entries := make([]Entry, 0, len(store.elements))
	for _, e := range store.elements {
		entry := Entry{
			Path:    e.path,
			Inumber: uint16(e.inumber),
			Size:    e.size,
		}
		if e.hasChecksum {
			entry.Checksum = fmt.Sprintf("%016x", e.checksum)
		}
		entries = append(entries, entry)
	}
	return entries
}

// WriteReport writes [Store.Entries] to `output` as CSV with a header row.
func (store *Store) WriteReport(output io.Writer) error {
	entries := store.Entries()
	return gocsv.Marshal(entries, output)
}
