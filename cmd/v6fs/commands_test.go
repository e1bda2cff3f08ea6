package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/dargueta/v6fs"
	"github.com/dargueta/v6fs/drivers/unixv6"
	v6test "github.com/dargueta/v6fs/testing"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const motdContents = "welcome to V6\n"

// newSampleImage builds an image with "/bin/sh", "/motd" and the character
// device "/tty", returning the builder and the raw inode of "/motd".
func newSampleImage(t *testing.T) (*v6test.ImageBuilder, unixv6.RawInode) {
	builder := v6test.NewImageBuilder(t, 64, 2)
	builder.AddDirectory(
		unixv6.RootInumber,
		unixv6.RootInumber,
		v6test.Dirent{Name: "bin", Inumber: 2},
		v6test.Dirent{Name: "motd", Inumber: 3},
		v6test.Dirent{Name: "tty", Inumber: 4})
	builder.AddDirectory(2, unixv6.RootInumber, v6test.Dirent{Name: "sh", Inumber: 5})
	motd := builder.AddFile(3, []byte(motdContents))
	builder.AddInode(4, v6test.InodeSpec{Mode: unixv6.FileTypeCharDevice | 0o666, NLink: 1})
	builder.AddFile(5, []byte("#!"))
	return builder, motd
}

// writeImage saves the builder's image to a temporary file and returns its
// path.
func writeImage(t *testing.T, builder *v6test.ImageBuilder) string {
	imagePath := filepath.Join(t.TempDir(), "disk.img")
	err := os.WriteFile(imagePath, builder.Bytes(), 0o644)
	require.NoError(t, err, "failed to write test image")
	return imagePath
}

// runApp runs the command line with `args` (not including the program name)
// and returns what was written to stdout and stderr.
func runApp(t *testing.T, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	// Exit errors are returned to the test instead of ending the process.
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"v6fs"}, args...))
	return stdout.String(), stderr.String(), err
}

func readSector(t *testing.T, imagePath string, sector unixv6.BlockNum) []byte {
	image, err := os.ReadFile(imagePath)
	require.NoError(t, err)
	start := int(sector) * unixv6.SectorSize
	return image[start : start+unixv6.SectorSize]
}

func TestListRegularFiles(t *testing.T) {
	builder, _ := newSampleImage(t)
	fs := builder.Open(unixv6.Options{})

	paths, err := listRegularFiles(fs, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/sh", "/motd"}, paths)
}

func TestConfigNewLogger(t *testing.T) {
	var output bytes.Buffer
	config := Config{LogLevel: "debug", LogJSON: true}
	logger, err := config.NewLogger(&output)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger.Debug("hello")
	assert.Contains(t, output.String(), `"msg":"hello"`)

	config.LogLevel = "loud"
	_, err = config.NewLogger(io.Discard)
	assert.Error(t, err)
}

func TestCat(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	stdout, _, err := runApp(t, "cat", imagePath, "/motd")
	require.NoError(t, err)
	assert.Equal(t, motdContents, stdout)

	stdout, _, err = runApp(t, "cat", imagePath, "/bin/sh")
	require.NoError(t, err)
	assert.Equal(t, "#!", stdout)
}

func TestCat__Directory(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	stdout, _, err := runApp(t, "cat", imagePath, "/bin")
	assert.ErrorIs(t, err, v6fs.ErrIsADirectory)
	assert.Empty(t, stdout)
}

func TestCat__Missing(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	_, _, err := runApp(t, "cat", imagePath, "/etc/passwd")
	assert.ErrorIs(t, err, v6fs.ErrNotFound)
}

func TestCat__MissingImage(t *testing.T) {
	_, _, err := runApp(t, "cat", filepath.Join(t.TempDir(), "nope.img"), "/motd")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestList(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	stdout, _, err := runApp(t, "ls", imagePath, "/")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	require.Len(t, lines, 5)

	names := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		names = append(names, fields[len(fields)-1])
	}
	assert.Equal(t, []string{".", "..", "bin", "motd", "tty"}, names)

	motdFields := strings.Fields(lines[3])
	assert.Equal(t, "3", motdFields[0])
	assert.Equal(t, "-rw-r--r--", motdFields[1])
	assert.Equal(t, fmt.Sprint(len(motdContents)), motdFields[5])

	binFields := strings.Fields(lines[2])
	assert.Equal(t, "2", binFields[0])
	assert.True(t, strings.HasPrefix(binFields[1], "d"), "bin should be a directory")
}

func TestList__NotADirectory(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	_, _, err := runApp(t, "ls", imagePath, "/motd")
	assert.ErrorIs(t, err, v6fs.ErrNotADirectory)
}

func TestStat(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	stdout, _, err := runApp(t, "stat", imagePath, "/motd")
	require.NoError(t, err)
	assert.Contains(t, stdout, "File: /motd\n")
	assert.Contains(t, stdout, "Inode: 3\tLinks: 1\n")
	assert.Contains(t, stdout, fmt.Sprintf("Size: %d\tBlocks: 1\n", len(motdContents)))
	assert.Contains(t, stdout, "Mode: -rw-r--r--\tUid: 0\tGid: 0\n")
}

func TestRemove__ZeroesImage(t *testing.T) {
	builder, motd := newSampleImage(t)
	imagePath := writeImage(t, builder)

	sector := motd.Addr[0]
	require.Equal(t, motdContents, string(readSector(t, imagePath, sector)[:len(motdContents)]))

	_, _, err := runApp(t, "rm", imagePath, "/motd")
	require.NoError(t, err)
	assert.Equal(t, make([]byte, unixv6.SectorSize), readSector(t, imagePath, sector))

	// The directory entry and inode are untouched, so the file is still there
	// but reads back as zeroes.
	stdout, _, err := runApp(t, "cat", imagePath, "/motd")
	require.NoError(t, err)
	assert.Equal(t, string(make([]byte, len(motdContents))), stdout)
}

func TestRemove__ReadOnly(t *testing.T) {
	testCases := []struct {
		name string
		env  string
		args []string
	}{
		{"flag", "", []string{"--read-only"}},
		{"environment", "1", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.env != "" {
				t.Setenv("V6FS_READ_ONLY", tc.env)
			}
			builder, motd := newSampleImage(t)
			imagePath := writeImage(t, builder)
			before, err := os.ReadFile(imagePath)
			require.NoError(t, err)

			args := append(tc.args, "rm", imagePath, "/motd")
			_, _, err = runApp(t, args...)
			assert.ErrorIs(t, err, v6fs.ErrReadOnlyFileSystem)

			after, err := os.ReadFile(imagePath)
			require.NoError(t, err)
			assert.Equal(t, before, after, "image was modified")
			assert.Equal(
				t,
				motdContents,
				string(readSector(t, imagePath, motd.Addr[0])[:len(motdContents)]))
		})
	}
}

func TestRemove__FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("V6FS_READ_ONLY", "true")
	builder, motd := newSampleImage(t)
	imagePath := writeImage(t, builder)

	_, _, err := runApp(t, "--read-only=false", "rm", imagePath, "/motd")
	require.NoError(t, err)
	assert.Equal(t, make([]byte, unixv6.SectorSize), readSector(t, imagePath, motd.Addr[0]))
}

func TestRemove__Directory(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	_, _, err := runApp(t, "rm", imagePath, "/bin")
	assert.ErrorIs(t, err, v6fs.ErrIsADirectory)
}

func TestLogLevel__FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("V6FS_LOG_LEVEL", "loud")
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	_, _, err := runApp(t, "cat", imagePath, "/motd")
	assert.ErrorContains(t, err, "invalid log level")

	stdout, _, err := runApp(t, "--log-level", "info", "cat", imagePath, "/motd")
	require.NoError(t, err)
	assert.Equal(t, motdContents, stdout)
}

func TestRemove__LogsToErrWriter(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	_, stderr, err := runApp(t, "--log-level", "info", "--json-logs", "rm", imagePath, "/motd")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"msg":"removed"`)
	assert.Contains(t, stderr, `"path":"/motd"`)
}

func TestNotEnoughArguments(t *testing.T) {
	builder, _ := newSampleImage(t)
	imagePath := writeImage(t, builder)

	for _, command := range []string{"cat", "ls", "stat", "rm"} {
		_, _, err := runApp(t, command, imagePath)
		assert.ErrorContainsf(t, err, "expected at least 2 arguments", "command %q", command)
	}
}

func newDedupImage(t *testing.T) *v6test.ImageBuilder {
	builder := v6test.NewImageBuilder(t, 64, 2)
	builder.AddDirectory(
		unixv6.RootInumber,
		unixv6.RootInumber,
		v6test.Dirent{Name: "good", Inumber: 2},
		v6test.Dirent{Name: "bad", Inumber: 3},
		v6test.Dirent{Name: "copy", Inumber: 4},
		v6test.Dirent{Name: "other", Inumber: 5})
	builder.AddFile(2, []byte("same"))
	// Same size as "good", but its only block lies past the end of the disk.
	builder.WriteInode(3, unixv6.RawInode{
		Flags:   unixv6.FlagIsAllocated | unixv6.FileTypePlainFile | 0o644,
		NLink:   1,
		SizeLow: 4,
		Addr:    [unixv6.NumAddressSlots]unixv6.BlockNum{5000},
	})
	builder.AddFile(4, []byte("same"))
	builder.AddFile(5, []byte("different"))
	return builder
}

func TestDedup__AllFiles(t *testing.T) {
	imagePath := writeImage(t, newDedupImage(t))

	stdout, stderr, err := runApp(t, "dedup", imagePath)
	require.NoError(t, err)

	expected := "path,inumber,size,xxhash64\n" +
		fmt.Sprintf("/good,2,4,%016x\n", xxhash.Sum64String("same")) +
		"/other,5,9,\n"
	assert.Equal(t, expected, stdout)

	assert.Contains(t, stderr, "skipping unreadable file")
	assert.Contains(t, stderr, "/bad")
}

func TestDedup__ExplicitPaths(t *testing.T) {
	imagePath := writeImage(t, newDedupImage(t))

	stdout, stderr, err := runApp(t, "dedup", imagePath, "/copy", "/nope", "/other", "/good")
	require.NoError(t, err)

	expected := "path,inumber,size,xxhash64\n" +
		fmt.Sprintf("/copy,4,4,%016x\n", xxhash.Sum64String("same")) +
		"/other,5,9,\n"
	assert.Equal(t, expected, stdout)
	assert.Contains(t, stderr, "/nope")
}
