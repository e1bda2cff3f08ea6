package main

import (
	"fmt"
	"os"
	posixpath "path"
	"text/tabwriter"

	"github.com/dargueta/v6fs/drivers/unixv6"
	"github.com/dargueta/v6fs/utilities/dedup"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// session is an open image along with the settings it was opened with.
type session struct {
	fs     *unixv6.FileSystem
	file   *os.File
	config *Config
	log    *logrus.Logger
}

func (s *session) Close() error {
	return s.file.Close()
}

// openSession opens the image named by the first argument. `minArgs` counts
// the image itself.
func openSession(context *cli.Context, minArgs int, wantWrite bool) (*session, error) {
	if context.NArg() < minArgs {
		return nil, cli.Exit(
			fmt.Sprintf("expected at least %d arguments, got %d", minArgs, context.NArg()),
			2)
	}

	config, err := loadConfig(context)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(context.App.ErrWriter)
	if err != nil {
		return nil, err
	}

	imagePath := context.Args().First()
	flags := os.O_RDONLY
	if wantWrite && !config.ReadOnly {
		flags = os.O_RDWR
	}

	file, err := os.OpenFile(imagePath, flags, 0)
	if err != nil {
		return nil, err
	}

	fs, err := unixv6.OpenStream(file, unixv6.Options{
		Logger:   logger.WithField("image", imagePath),
		ReadOnly: flags == os.O_RDONLY,
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("can't open %q: %w", imagePath, err)
	}

	return &session{fs: fs, file: file, config: config, log: logger}, nil
}

func catFile(context *cli.Context) error {
	s, err := openSession(context, 2, false)
	if err != nil {
		return err
	}
	defer s.Close()

	contents, err := s.fs.ReadFile(context.Args().Get(1))
	if err != nil {
		return err
	}
	_, err = context.App.Writer.Write(contents)
	return err
}

func listDirectory(context *cli.Context) error {
	s, err := openSession(context, 2, false)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.fs.ReadDirPath(context.Args().Get(1))
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(context.App.Writer, 0, 4, 1, ' ', tabwriter.AlignRight)
	for _, entry := range entries {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%d\t%d\t%d\t%d\t%s\t %s\n",
			entry.Stat.InodeNumber,
			entry.Mode(),
			entry.Stat.Nlinks,
			entry.Stat.Uid,
			entry.Stat.Gid,
			entry.Size(),
			entry.ModTime().UTC().Format("2006-01-02 15:04"),
			entry.Name())
	}
	return writer.Flush()
}

func statPath(context *cli.Context) error {
	s, err := openSession(context, 2, false)
	if err != nil {
		return err
	}
	defer s.Close()

	path := context.Args().Get(1)
	stat, err := s.fs.Stat(path)
	if err != nil {
		return err
	}

	output := context.App.Writer
	fmt.Fprintf(output, "  File: %s\n", path)
	fmt.Fprintf(output, " Inode: %d\tLinks: %d\n", stat.InodeNumber, stat.Nlinks)
	fmt.Fprintf(output, "  Size: %d\tBlocks: %d\n", stat.Size, stat.NumBlocks)
	fmt.Fprintf(output, "  Mode: %s\tUid: %d\tGid: %d\n", stat.ModeFlags, stat.Uid, stat.Gid)
	fmt.Fprintf(output, "Access: %s\n", stat.LastAccessed.UTC())
	fmt.Fprintf(output, "Modify: %s\n", stat.LastModified.UTC())
	return nil
}

func removeFile(context *cli.Context) error {
	s, err := openSession(context, 2, true)
	if err != nil {
		return err
	}
	defer s.Close()

	path := context.Args().Get(1)
	err = s.fs.RemovePath(path)
	if err != nil {
		return err
	}
	s.log.WithField("path", path).Info("removed")
	return nil
}

func dedupFiles(context *cli.Context) error {
	s, err := openSession(context, 1, false)
	if err != nil {
		return err
	}
	defer s.Close()

	paths := context.Args().Tail()
	if len(paths) == 0 {
		paths, err = listRegularFiles(s.fs, "/")
		if err != nil {
			return err
		}
	}

	store := dedup.New(s.fs, s.log)
	for _, path := range paths {
		_, err := store.Add(path, true)
		if err != nil {
			s.log.WithError(err).WithField("path", path).Warn("skipping unreadable file")
		}
	}

	s.log.WithField("stats", store.Stats().String()).Info("dedup finished")
	return store.WriteReport(context.App.Writer)
}

// listRegularFiles returns the paths of all regular files under `dir`,
// depth-first in directory order.
func listRegularFiles(fs *unixv6.FileSystem, dir string) ([]string, error) {
	entries, err := fs.ReadDirPath(dir)
	if err != nil {
		return nil, err
	}

	paths := []string{}
	for _, entry := range entries {
		if entry.Name() == "." || entry.Name() == ".." {
			continue
		}

		fullPath := posixpath.Join(dir, entry.Name())
		if entry.IsDir() {
			children, err := listRegularFiles(fs, fullPath)
			if err != nil {
				return nil, err
			}
			paths = append(paths, children...)
		} else if entry.Stat.IsFile() {
			paths = append(paths, fullPath)
		}
	}
	return paths, nil
}
