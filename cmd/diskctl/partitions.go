package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/diskkit/disk/part"
)

func init() {
	rootCmd.AddCommand(newPartitionsCmd())
}

func newPartitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partitions <image>",
		Short: "List the partition map of a disk image",
		Long: `The partitions command reads the image's partition map and lists
every partition with its block range and type. Images without a map are
probed for embedded volumes in free space instead.

Example:
  diskctl partitions bigdisk.po`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitions(args)
		},
	}
	return cmd
}

type partRow struct {
	Start      uint32 `json:"start"`
	Count      uint32 `json:"count"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Filesystem string `json:"filesystem,omitempty"`
}

func runPartitions(args []string) error {
	c, err := openContainer(args[0], false)
	if err != nil {
		return fmt.Errorf("failed to open container: %w", err)
	}
	defer c.Close()

	if c.img == nil {
		return fmt.Errorf("%s: not a disk image", args[0])
	}

	table, err := part.ReadAPM(c.img.Dev)
	if errors.Is(err, part.ErrNoMap) {
		printVerbose("No partition map, probing free space for embedded volumes\n")
		if c.vol == nil {
			return fmt.Errorf("%s: no partition map and no filesystem", args[0])
		}
		table, err = part.FindEmbeddedVolumes(c.vol)
	}
	if err != nil {
		return err
	}

	var rows []partRow
	for _, p := range table.Partitions() {
		row := partRow{Start: p.Start, Count: p.Count, Name: p.Name, Type: p.Type}
		if vol, err := p.Analyze(); err == nil {
			row.Filesystem = vol.FormatName()
		}
		rows = append(rows, row)
	}

	if jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		printInfo("no partitions found\n")
		return nil
	}
	printInfo("%10s %10s  %-16s %-16s %s\n", "START", "BLOCKS", "NAME", "TYPE", "FILESYSTEM")
	for _, row := range rows {
		printInfo("%10d %10d  %-16s %-16s %s\n",
			row.Start, row.Count, row.Name, row.Type, row.Filesystem)
	}
	return nil
}
