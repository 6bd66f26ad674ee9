package main

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/joshuapare/addrkit/iddb"
)

func init() {
	rootCmd.AddCommand(newLookupCmd(), newReverseCmd())
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <library.bin> <id>...",
		Short: "Print the offsets of ids",
		Long: `The lookup command prints the offset recorded for each id. Missing ids
are reported and make the command fail.

Example:
  addrctl lookup versionlib-1.6.1170.0.bin 11045 0x2B1C`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(args)
		},
	}
}

func newReverseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reverse <library.bin> <offset>...",
		Short: "Print the ids recorded at offsets",
		Long: `The reverse command finds the id recorded at each offset.

Example:
  addrctl reverse versionlib-1.6.1170.0.bin 0x1D6B00`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReverse(args)
		},
	}
}

type lookupResult struct {
	ID     uint64 `json:"id"`
	Offset string `json:"offset,omitempty"`
	Found  bool   `json:"found"`
}

func runLookup(args []string) error {
	ids, err := parseNumbers(args[1:])
	if err != nil {
		return err
	}
	_, table, err := iddb.ReadFile(args[0], libFormat)
	if err != nil {
		return fmt.Errorf("failed to read library: %w", err)
	}

	results := make([]lookupResult, 0, len(ids))
	missing := 0
	for _, id := range ids {
		off, ok := findID(table, id)
		r := lookupResult{ID: id, Found: ok}
		if ok {
			r.Offset = fmt.Sprintf("0x%X", off)
		} else {
			missing++
		}
		results = append(results, r)
	}
	if err := printResults(results); err != nil {
		return err
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d ids not found", missing, len(ids))
	}
	return nil
}

func runReverse(args []string) error {
	offsets, err := parseNumbers(args[1:])
	if err != nil {
		return err
	}
	_, table, err := iddb.ReadFile(args[0], libFormat)
	if err != nil {
		return fmt.Errorf("failed to read library: %w", err)
	}
	idx := iddb.NewOffsetIndex(table)

	results := make([]lookupResult, 0, len(offsets))
	missing := 0
	for _, off := range offsets {
		id, ok := idx.ID(off)
		if !ok {
			missing++
		}
		results = append(results, lookupResult{ID: id, Offset: fmt.Sprintf("0x%X", off), Found: ok})
	}
	if err := printResults(results); err != nil {
		return err
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d offsets not found", missing, len(offsets))
	}
	return nil
}

func findID(table []iddb.Mapping, id uint64) (uint64, bool) {
	i, ok := slices.BinarySearchFunc(table, id, func(m iddb.Mapping, id uint64) int {
		return cmp.Compare(m.ID, id)
	})
	if !ok {
		return 0, false
	}
	return table[i].Offset, true
}

func printResults(results []lookupResult) error {
	if jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		switch {
		case !r.Found && r.Offset == "":
			printInfo("%d: not found\n", r.ID)
		case !r.Found:
			printInfo("%s: not found\n", r.Offset)
		default:
			printInfo("%d  %s\n", r.ID, r.Offset)
		}
	}
	return nil
}
