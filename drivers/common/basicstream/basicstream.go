// Package basicstream implements a read-only file-like abstraction around a
// function that fetches one logical block of a file at a time.

package basicstream

import (
	"fmt"
	"io"

	"github.com/dargueta/v6fs"
	c "github.com/dargueta/v6fs/drivers/common"
)

// FetchBlockCallback fills `buffer` with the contents of logical block `index`
// and returns the number of valid bytes in it. `buffer` is guaranteed to be the
// size of exactly one block.
type FetchBlockCallback func(index c.LogicalBlock, buffer []byte) (int, error)

// BasicStream is a read-only, file-like wrapper around a block fetcher that
// emulates a subset of the functionality provided by an [os.File] instance.
type BasicStream struct {
	// Interfaces
	io.ReadSeeker
	io.ReaderAt
	io.WriterTo

	// Fields
	size          int64
	position      int64
	bytesPerBlock uint
	fetch         FetchBlockCallback

	// The block most recently fetched, so that small sequential reads don't
	// hit the fetcher once per call.
	current      []byte
	currentIndex c.LogicalBlock
	currentValid int
	hasCurrent   bool
}

// New creates a BasicStream of exactly `size` bytes on top of `fetch`.
func New(size int64, bytesPerBlock uint, fetch FetchBlockCallback) (*BasicStream, error) {
	if size < 0 {
		return nil, v6fs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid stream size: %d", size))
	}
	if bytesPerBlock == 0 {
		return nil, v6fs.ErrInvalidArgument.WithMessage("block size can't be 0")
	}

	return &BasicStream{
		size:          size,
		bytesPerBlock: bytesPerBlock,
		fetch:         fetch,
		current:       make([]byte, bytesPerBlock),
	}, nil
}

func (stream *BasicStream) convertLinearAddr(offset int64) (c.LogicalBlock, uint) {
	bytesPerBlock := int64(stream.bytesPerBlock)
	return c.LogicalBlock(offset / bytesPerBlock), uint(offset % bytesPerBlock)
}

func (stream *BasicStream) loadBlock(index c.LogicalBlock) error {
	if stream.hasCurrent && stream.currentIndex == index {
		return nil
	}

	stream.hasCurrent = false
	valid, err := stream.fetch(index, stream.current)
	if err != nil {
		return err
	}
	if valid < 0 || valid > len(stream.current) {
		return v6fs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("block %d reported %d valid bytes", index, valid))
	}

	stream.currentIndex = index
	stream.currentValid = valid
	stream.hasCurrent = true
	return nil
}

func (stream *BasicStream) Read(buffer []byte) (int, error) {
	totalRead, err := stream.ReadAt(buffer, stream.position)
	stream.position += int64(totalRead)
	return totalRead, err
}

func (stream *BasicStream) ReadAt(buffer []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, v6fs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("negative offset %d", offset))
	}
	if offset >= stream.size {
		return 0, io.EOF
	}

	// Clamp the number of bytes to read to whichever is smaller; the length of
	// the buffer or the end of the file.
	numBytesToRead := int64(len(buffer))
	if offset+numBytesToRead > stream.size {
		numBytesToRead = stream.size - offset
	}

	totalRead := 0
	for int64(totalRead) < numBytesToRead {
		index, blockOffset := stream.convertLinearAddr(offset + int64(totalRead))
		err := stream.loadBlock(index)
		if err != nil {
			return totalRead, err
		}
		if int(blockOffset) >= stream.currentValid {
			return totalRead, v6fs.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf(
					"block %d has %d valid bytes, needed offset %d",
					index,
					stream.currentValid,
					blockOffset))
		}

		remaining := numBytesToRead - int64(totalRead)
		chunk := stream.current[blockOffset:stream.currentValid]
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		totalRead += copy(buffer[totalRead:], chunk)
	}

	if totalRead < len(buffer) {
		return totalRead, io.EOF
	}
	return totalRead, nil
}

// Seek resets the stream pointer to `offset` bytes from the origin specified in
// `whence`. It must be one of [io.SeekStart], [io.SeekCurrent], or [io.SeekEnd].
//
// Seeking past the end of the file is possible; reads from there return no
// data.
func (stream *BasicStream) Seek(offset int64, whence int) (int64, error) {
	var absoluteOffset int64

	switch whence {
	case io.SeekStart:
		absoluteOffset = offset
	case io.SeekCurrent:
		absoluteOffset = stream.position + offset
	case io.SeekEnd:
		absoluteOffset = stream.size + offset
	default:
		return stream.position, v6fs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid seek origin: %d", whence))
	}

	if absoluteOffset < 0 {
		return stream.position,
			v6fs.ErrInvalidArgument.WithMessage(
				fmt.Sprintf(
					"result of Seek(offset=%d, whence=%d) is negative",
					offset,
					whence,
				))
	}

	stream.position = absoluteOffset
	return absoluteOffset, nil
}

// Size returns the size of the file, in bytes.
func (stream *BasicStream) Size() int64 {
	return stream.size
}

// Tell returns the current stream position. It's a more concise way of calling
// `Seek(0, io.SeekCurrent)`.
func (stream *BasicStream) Tell() int64 {
	return stream.position
}

func (stream *BasicStream) WriteTo(w io.Writer) (int64, error) {
	buffer := make([]byte, stream.bytesPerBlock)
	totalWritten := int64(0)

	for {
		blockSize, err := stream.Read(buffer)

		// Always write the data we've read in regardless of whether an error
		// occurred or not.
		if blockSize > 0 {
			n, writeErr := w.Write(buffer[:blockSize])
			totalWritten += int64(n)
			if writeErr != nil {
				return totalWritten, writeErr
			}
		}

		// If we hit EOF, we're done. Any other error is fatal.
		if err == io.EOF {
			return totalWritten, nil
		} else if err != nil {
			return totalWritten, err
		}
	}
}
