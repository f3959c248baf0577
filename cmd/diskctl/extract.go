package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/fs"
)

var extractOut string

func init() {
	rootCmd.AddCommand(newExtractCmd())
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <container> <name>",
		Short: "Extract one file from a disk image or archive",
		Long: `The extract command copies one file out of the container. Disk image
paths use / between directory levels; archive record names are matched
exactly. The output is written atomically: a failed extraction never
leaves a half-written file behind.

Example:
  diskctl extract games.dsk "HELLO"
  diskctl extract files.bny SUB/NOTES.TXT -o notes.txt`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(args)
		},
	}
	cmd.Flags().StringVarP(&extractOut, "output", "o", "", "Output path (default: base name)")
	return cmd
}

func runExtract(args []string) error {
	path, name := args[0], args[1]
	c, err := openContainer(path, false)
	if err != nil {
		return fmt.Errorf("failed to open container: %w", err)
	}
	defer c.Close()

	out := extractOut
	if out == "" {
		out = filepath.Base(strings.ReplaceAll(name, "/", string(filepath.Separator)))
	}

	switch {
	case c.archive != nil:
		r, err := c.archive.FindRecord(name)
		if err != nil {
			return err
		}
		rc, err := c.archive.OpenPart(r, arc.PartData)
		if err != nil {
			return err
		}
		defer rc.Close()
		if err := atomic.WriteFile(out, rc); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

	case c.vol != nil:
		e, err := findEntry(c.vol.Root(), name)
		if err != nil {
			return err
		}
		fd, err := c.vol.Open(e, false, false)
		if err != nil {
			return err
		}
		defer fd.Close()
		if err := atomic.WriteFile(out, fd); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

	default:
		return fmt.Errorf("%s: no filesystem recognized", path)
	}

	printVerbose("Extracted %s to %s\n", name, out)
	return nil
}

func findEntry(root *fs.Entry, path string) (*fs.Entry, error) {
	e := root
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		e = e.ChildNamed(seg)
		if e == nil {
			return nil, fmt.Errorf("%w: %s", fs.ErrEntryNotFound, path)
		}
	}
	if e == root {
		return nil, fmt.Errorf("%w: %s", fs.ErrEntryNotFound, path)
	}
	return e, nil
}
