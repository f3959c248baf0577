package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/diskkit/fs"
)

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <image>",
		Short: "Run the structural scan and report findings",
		Long: `The verify command loads the filesystem with the full structural
verification pass and prints every finding: allocation overlaps, broken
chains, directory count mismatches. The exit status is non-zero when any
entry is damaged.

Example:
  diskctl verify suspect.dsk
  diskctl verify suspect.dsk --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args)
		},
	}
	return cmd
}

func runVerify(args []string) error {
	c, err := openContainer(args[0], false)
	if err != nil {
		return fmt.Errorf("failed to open container: %w", err)
	}
	defer c.Close()

	if c.vol == nil {
		return fmt.Errorf("%s: no filesystem recognized", args[0])
	}

	findings := c.vol.Findings()
	damaged := countDamaged(c.vol.Root())

	if jsonOut {
		out := map[string]any{
			"filesystem": c.vol.FormatName(),
			"dubious":    c.vol.IsDubious(),
			"readOnly":   c.vol.ReadOnly(),
			"damaged":    damaged,
			"findings":   make([]string, 0, len(findings)),
		}
		for _, f := range findings {
			out["findings"] = append(out["findings"].([]string), f.String())
		}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		printInfo("Filesystem: %s\n", c.vol.FormatName())
		printInfo("Dubious: %v, read-only: %v\n", c.vol.IsDubious(), c.vol.ReadOnly())
		for _, f := range findings {
			printInfo("  %s\n", f)
		}
		if len(findings) == 0 {
			printInfo("  no findings\n")
		}
	}

	if damaged > 0 {
		return fmt.Errorf("%d damaged entries", damaged)
	}
	return nil
}

func countDamaged(e *fs.Entry) int {
	n := 0
	if e.Health() == fs.HealthDamaged {
		n++
	}
	for _, child := range e.Children() {
		n += countDamaged(child)
	}
	return n
}
