package unixv6_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
	"github.com/dargueta/v6fs/drivers/unixv6"
	v6test "github.com/dargueta/v6fs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindName__Basic(t *testing.T) {
	fs := newSampleBuilder(t, 64).Open(unixv6.Options{})

	entry, err := fs.FindName("docs", unixv6.RootInumber)
	require.NoError(t, err)
	assert.Equal(t, unixv6.DirEntry{Inumber: docsInumber, Name: "docs"}, entry)

	entry, err = fs.FindName("readme.txt", docsInumber)
	require.NoError(t, err)
	assert.Equal(t, readmeInumber, entry.Inumber)

	entry, err = fs.FindName("..", docsInumber)
	require.NoError(t, err)
	assert.Equal(t, unixv6.RootInumber, entry.Inumber)
}

func TestFindName__Missing(t *testing.T) {
	fs := newSampleBuilder(t, 64).Open(unixv6.Options{})

	_, err := fs.FindName("nope", unixv6.RootInumber)
	assert.ErrorIs(t, err, v6fs.ErrNotFound)

	// Prefixes and extensions of an existing name don't match.
	_, err = fs.FindName("doc", unixv6.RootInumber)
	assert.ErrorIs(t, err, v6fs.ErrNotFound)
	_, err = fs.FindName("docs2", unixv6.RootInumber)
	assert.ErrorIs(t, err, v6fs.ErrNotFound)
}

func TestFindName__FullLengthName(t *testing.T) {
	builder := v6test.NewImageBuilder(t, 64, 2)
	builder.AddDirectory(
		unixv6.RootInumber,
		unixv6.RootInumber,
		v6test.Dirent{Name: "abcdefghijklmn", Inumber: 4})
	builder.AddFile(4, []byte("x"))
	fs := builder.Open(unixv6.Options{})

	entry, err := fs.FindName("abcdefghijklmn", unixv6.RootInumber)
	require.NoError(t, err)
	assert.EqualValues(t, 4, entry.Inumber)
}

func TestFindName__NameTooLong(t *testing.T) {
	fs, device := newSampleBuilder(t, 64).OpenInstrumented(unixv6.Options{})

	_, err := fs.FindName(strings.Repeat("a", unixv6.MaxNameLength+1), unixv6.RootInumber)
	assert.ErrorIs(t, err, v6fs.ErrNameTooLong)
	assert.Zero(t, device.TotalReads())
}

func TestFindName__FreeSlotsIgnored(t *testing.T) {
	builder := v6test.NewImageBuilder(t, 64, 2)
	builder.AddDirectory(
		unixv6.RootInumber,
		unixv6.RootInumber,
		v6test.Dirent{Name: "ghost", Inumber: 0},
		v6test.Dirent{Name: "real", Inumber: 4})
	builder.AddFile(4, []byte("x"))
	fs := builder.Open(unixv6.Options{})

	_, err := fs.FindName("ghost", unixv6.RootInumber)
	assert.ErrorIs(t, err, v6fs.ErrNotFound)

	entries, err := fs.ReadDir(unixv6.RootInumber)
	require.NoError(t, err)
	assert.Equal(
		t,
		[]unixv6.DirEntry{
			{Inumber: unixv6.RootInumber, Name: "."},
			{Inumber: unixv6.RootInumber, Name: ".."},
			{Inumber: 4, Name: "real"},
		},
		entries)
}

func TestFindName__FirstMatchWins(t *testing.T) {
	builder := v6test.NewImageBuilder(t, 64, 2)
	builder.AddDirectory(
		unixv6.RootInumber,
		unixv6.RootInumber,
		v6test.Dirent{Name: "twin", Inumber: 4},
		v6test.Dirent{Name: "twin", Inumber: 5})
	fs := builder.Open(unixv6.Options{})

	entry, err := fs.FindName("twin", unixv6.RootInumber)
	require.NoError(t, err)
	assert.EqualValues(t, 4, entry.Inumber)
}

// A directory spanning several blocks must be searched past the first one.
func TestFindName__MultiBlockDirectory(t *testing.T) {
	builder := v6test.NewImageBuilder(t, 64, 8)

	entries := []v6test.Dirent{}
	for i := 0; i < 80; i++ {
		entries = append(entries, v6test.Dirent{
			Name:    fmt.Sprintf("file%03d", i),
			Inumber: unixv6.Inumber(i + 10),
		})
	}
	builder.AddDirectory(unixv6.RootInumber, unixv6.RootInumber, entries...)
	fs := builder.Open(unixv6.Options{})

	size, err := fs.FileSize(unixv6.RootInumber)
	require.NoError(t, err)
	require.Greater(t, size, int64(2*unixv6.SectorSize))

	entry, err := fs.FindName("file079", unixv6.RootInumber)
	require.NoError(t, err)
	assert.EqualValues(t, 89, entry.Inumber)

	listing, err := fs.ReadDir(unixv6.RootInumber)
	require.NoError(t, err)
	assert.Len(t, listing, 82)
}

func TestFindName__NotADirectory(t *testing.T) {
	fs := newSampleBuilder(t, 64).Open(unixv6.Options{})

	_, err := fs.FindName("anything", readmeInumber)
	assert.ErrorIs(t, err, v6fs.ErrNotADirectory)
}

func TestFindName__NotAllocated(t *testing.T) {
	builder := newSampleBuilder(t, 64)
	builder.AddInode(12, v6test.InodeSpec{
		Mode:        unixv6.FileTypeDirectory | 0o755,
		Unallocated: true,
	})
	fs := builder.Open(unixv6.Options{})

	_, err := fs.FindName("anything", 12)
	assert.ErrorIs(t, err, v6fs.ErrNotAllocated)
}

func TestFindName__CorruptDirectorySize(t *testing.T) {
	builder := newSampleBuilder(t, 64)
	builder.AddInode(12, v6test.InodeSpec{
		Mode:   unixv6.FileTypeDirectory | 0o755,
		NLink:  2,
		Size:   20,
		Blocks: map[int][]byte{0: make([]byte, 20)},
	})
	fs := builder.Open(unixv6.Options{})

	_, err := fs.FindName("anything", 12)
	assert.ErrorIs(t, err, v6fs.ErrFileSystemCorrupted)

	_, err = fs.ReadDir(12)
	assert.ErrorIs(t, err, v6fs.ErrFileSystemCorrupted)
}

func TestFindName__BlockReadFailure(t *testing.T) {
	builder := v6test.NewImageBuilder(t, 64, 2)
	raw := builder.AddDirectory(
		unixv6.RootInumber,
		unixv6.RootInumber,
		v6test.Dirent{Name: "a", Inumber: 4})
	fs, device := builder.OpenInstrumented(unixv6.Options{})
	device.FailReads(c.PhysicalBlock(raw.Addr[0]))

	_, err := fs.FindName("a", unixv6.RootInumber)
	assert.ErrorIs(t, err, v6fs.ErrIOFailed)
}

func TestReadDir__Order(t *testing.T) {
	fs := newSampleBuilder(t, 64).Open(unixv6.Options{})

	entries, err := fs.ReadDir(docsInumber)
	require.NoError(t, err)
	assert.Equal(
		t,
		[]unixv6.DirEntry{
			{Inumber: docsInumber, Name: "."},
			{Inumber: unixv6.RootInumber, Name: ".."},
			{Inumber: readmeInumber, Name: "readme.txt"},
		},
		entries)
}
