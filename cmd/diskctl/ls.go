package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/disk/part"
	"github.com/joshuapare/diskkit/fs"
)

var lsNested bool

func init() {
	rootCmd.AddCommand(newLsCmd())
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <container>",
		Short: "List the files in a disk image or archive",
		Long: `The ls command lists every file in the container. For disk images
with a recognized filesystem the entry tree is walked; with --nested,
embedded volumes found in free space are listed too. For archives the
record set is listed.

Example:
  diskctl ls games.dsk
  diskctl ls bigdisk.po --nested`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(args)
		},
	}
	cmd.Flags().BoolVar(&lsNested, "nested", false, "Descend into embedded volumes")
	return cmd
}

type lsEntry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Dir    bool   `json:"dir,omitempty"`
	Health string `json:"health,omitempty"`
	Locked bool   `json:"locked,omitempty"`
}

func runLs(args []string) error {
	c, err := openContainer(args[0], false)
	if err != nil {
		return fmt.Errorf("failed to open container: %w", err)
	}
	defer c.Close()

	var rows []lsEntry
	switch {
	case c.archive != nil:
		for _, r := range c.archive.Records() {
			row := lsEntry{Path: r.Name(), Dir: r.IsDirectory()}
			if p, ok := r.Part(arc.PartData); ok {
				row.Size = p.Len
			}
			rows = append(rows, row)
		}
	case c.vol != nil:
		rows = collectEntries(rows, c.vol.Root(), "")
		if lsNested {
			rows, err = collectNested(rows, c.vol)
			if err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%s: no filesystem recognized", args[0])
	}

	if jsonOut {
		return printJSON(rows)
	}
	for _, row := range rows {
		marker := " "
		if row.Dir {
			marker = "/"
		}
		printInfo("%10d  %s%s", row.Size, row.Path, marker)
		if row.Health != "" && row.Health != "ok" {
			printInfo("  [%s]", row.Health)
		}
		printInfo("\n")
	}
	return nil
}

func collectEntries(rows []lsEntry, e *fs.Entry, prefix string) []lsEntry {
	for _, child := range e.Children() {
		path := prefix + child.Name()
		rows = append(rows, lsEntry{
			Path:   path,
			Size:   child.DataLen(),
			Dir:    child.IsDirectory(),
			Health: child.Health().String(),
			Locked: child.Locked(),
		})
		if child.IsDirectory() {
			rows = collectEntries(rows, child, path+"/")
		}
	}
	return rows
}

func collectNested(rows []lsEntry, v *fs.Volume) ([]lsEntry, error) {
	table, err := part.FindEmbeddedVolumes(v)
	if err != nil {
		return rows, err
	}
	for i, p := range table.Partitions() {
		inner, err := p.Analyze()
		if err != nil {
			continue
		}
		if err := inner.PrepareFileAccess(true); err != nil {
			continue
		}
		prefix := fmt.Sprintf("::embedded%d/", i)
		rows = collectEntries(rows, inner.Root(), prefix)
	}
	return rows, nil
}
