package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <container>",
		Short: "Identify a container and report basic metadata",
		Long: `The info command identifies a disk image or archive and displays
what was recognized: container kind, size, filesystem or archive format,
and health state.

Example:
  diskctl info games.dsk
  diskctl info files.bny --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

func runInfo(args []string) error {
	path := args[0]
	printVerbose("Opening container: %s\n", path)

	c, err := openContainer(path, false)
	if err != nil {
		return fmt.Errorf("failed to open container: %w", err)
	}
	defer c.Close()

	info := map[string]any{
		"path": path,
		"kind": c.kind.String(),
	}
	if st, err := os.Stat(path); err == nil {
		info["size"] = st.Size()
	}

	switch {
	case c.archive != nil:
		info["format"] = c.archive.FormatName()
		info["records"] = len(c.archive.Records())
	case c.vol != nil:
		info["filesystem"] = c.vol.FormatName()
		info["volume"] = c.vol.Root().Name()
		info["dubious"] = c.vol.IsDubious()
		info["readOnly"] = c.vol.ReadOnly()
		info["findings"] = len(c.vol.Findings())
	default:
		info["filesystem"] = "none recognized"
	}
	if c.img != nil {
		info["blocks"] = c.img.Dev.NumBlocks()
		if c.img.Locked {
			info["locked"] = true
		}
		if c.img.Nib != nil {
			info["badSectors"] = len(c.img.Nib.BadSectors())
		}
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("Container Information:\n")
	printInfo("  File: %s\n", path)
	printInfo("  Kind: %s\n", c.kind)
	for _, k := range []string{
		"size", "blocks", "filesystem", "volume", "format",
		"records", "dubious", "readOnly", "locked", "badSectors", "findings",
	} {
		if v, ok := info[k]; ok {
			printInfo("  %s: %v\n", k, v)
		}
	}
	return nil
}
