package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "v6fs",
		Usage: "Inspect and modify Unix V6 file system images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "minimum level of log messages to show (overrides $V6FS_LOG_LEVEL)",
			},
			&cli.BoolFlag{
				Name:  "json-logs",
				Usage: "write log messages as JSON (overrides $V6FS_LOG_JSON)",
			},
			&cli.BoolFlag{
				Name:  "read-only",
				Usage: "never write to the image (overrides $V6FS_READ_ONLY)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "cat",
				Usage:     "Write the contents of a file to standard output",
				Action:    catFile,
				ArgsUsage: "IMAGE PATH",
			},
			{
				Name:      "ls",
				Usage:     "List a directory",
				Action:    listDirectory,
				ArgsUsage: "IMAGE PATH",
			},
			{
				Name:      "stat",
				Usage:     "Show information about a file or directory",
				Action:    statPath,
				ArgsUsage: "IMAGE PATH",
			},
			{
				Name:      "rm",
				Usage:     "Remove one link to a file, zeroing its contents if it was the last",
				Action:    removeFile,
				ArgsUsage: "IMAGE PATH",
			},
			{
				Name: "dedup",
				Usage: "Find files with identical contents and print a CSV of the unique ones. " +
					"With no paths, every regular file on the image is checked",
				Action:    dedupFiles,
				ArgsUsage: "IMAGE [PATH...]",
			},
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}
