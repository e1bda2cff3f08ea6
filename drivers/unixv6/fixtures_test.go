package unixv6_test

import (
	"crypto/rand"
	"testing"

	c "github.com/dargueta/v6fs/drivers/common"
	"github.com/dargueta/v6fs/drivers/unixv6"
	v6test "github.com/dargueta/v6fs/testing"
	"github.com/stretchr/testify/require"
)

const (
	docsInumber   = unixv6.Inumber(5)
	readmeInumber = unixv6.Inumber(9)
)

var readmeContents = []byte("hello V6!\n")

// newSampleBuilder creates an image with "/docs/readme.txt" and nothing else.
// The root directory is inode 1, "docs" is inode 5, and "readme.txt" is inode
// 9, ten bytes long.
func newSampleBuilder(t *testing.T, totalSectors uint) *v6test.ImageBuilder {
	builder := v6test.NewImageBuilder(t, totalSectors, 2)
	builder.AddDirectory(
		unixv6.RootInumber,
		unixv6.RootInumber,
		v6test.Dirent{Name: "docs", Inumber: docsInumber})
	builder.AddDirectory(
		docsInumber,
		unixv6.RootInumber,
		v6test.Dirent{Name: "readme.txt", Inumber: readmeInumber})
	builder.AddFile(readmeInumber, readmeContents)
	return builder
}

func randomBytes(t *testing.T, size int) []byte {
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

// readBlock fetches one block and fails the test if that isn't possible.
func readBlock(
	t *testing.T, fs *unixv6.FileSystem, inumber unixv6.Inumber, block uint,
) ([]byte, int) {
	buffer := make([]byte, unixv6.SectorSize)
	valid, err := fs.GetBlock(inumber, c.LogicalBlock(block), buffer)
	require.NoErrorf(t, err, "failed to read block %d of inode %d", block, inumber)
	return buffer, valid
}
