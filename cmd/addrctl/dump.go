package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/addrkit/iddb"
)

var (
	dumpLimit    int
	dumpByOffset bool
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().IntVar(&dumpLimit, "limit", 0, "Maximum records to print (0 = all)")
	cmd.Flags().BoolVar(&dumpByOffset, "by-offset", false, "Order records by offset instead of id")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <library.bin>",
		Short: "Print every id and offset in an address library",
		Long: `The dump command decodes an address library and prints its records.

Example:
  addrctl dump versionlib-1.6.1170.0.bin --limit 20
  addrctl dump versionlib-1.6.1170.0.bin --by-offset --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
}

type record struct {
	ID     uint64 `json:"id"`
	Offset string `json:"offset"`
}

func runDump(args []string) error {
	_, table, err := iddb.ReadFile(args[0], libFormat)
	if err != nil {
		return fmt.Errorf("failed to read library: %w", err)
	}
	if dumpByOffset {
		iddb.NewOffsetIndex(table)
	}
	if dumpLimit > 0 && dumpLimit < len(table) {
		table = table[:dumpLimit]
	}

	if jsonOut {
		out := make([]record, len(table))
		for i, m := range table {
			out[i] = record{ID: m.ID, Offset: fmt.Sprintf("0x%X", m.Offset)}
		}
		return printJSON(out)
	}
	if isTerminal() {
		printInfo("%10s  %s\n", "ID", "OFFSET")
	}
	for _, m := range table {
		printInfo("%10d  0x%08X\n", m.ID, m.Offset)
	}
	return nil
}
