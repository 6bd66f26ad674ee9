package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/addrkit/iddb"
)

var libFormat int32

func init() {
	rootCmd.PersistentFlags().Int32Var(&libFormat, "format", 0,
		"Expected library format (1 = SE/VR, 2 = AE, 0 = as declared by the file)")
	rootCmd.AddCommand(newHeaderCmd())
}

func newHeaderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "header <library.bin>",
		Short: "Decode an address library and print its header",
		Long: `The header command decodes an address library and prints its format,
target version, pointer size and record count.

Example:
  addrctl header versionlib-1.6.1170.0.bin
  addrctl header version-1.5.97.0.bin --format 1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeader(args)
		},
	}
}

type headerInfo struct {
	Path          string `json:"path"`
	FormatVersion int32  `json:"format_version"`
	Version       string `json:"version"`
	PointerSize   uint32 `json:"pointer_size"`
	AddressCount  uint32 `json:"address_count"`
	MinID         uint64 `json:"min_id"`
	MaxID         uint64 `json:"max_id"`
}

func runHeader(args []string) error {
	path := args[0]
	printVerbose("Decoding library: %s\n", path)

	h, table, err := iddb.ReadFile(path, libFormat)
	if err != nil {
		return fmt.Errorf("failed to read library: %w", err)
	}
	info := headerInfo{
		Path:          path,
		FormatVersion: h.FormatVersion,
		Version:       h.Version.String(),
		PointerSize:   h.PointerSize,
		AddressCount:  h.AddressCount,
	}
	if len(table) > 0 {
		info.MinID, info.MaxID = table[0].ID, table[len(table)-1].ID
	}

	if jsonOut {
		return printJSON(info)
	}
	printInfo("\nAddress Library:\n")
	printInfo("  File: %s\n", info.Path)
	printInfo("  Format: %d\n", info.FormatVersion)
	printInfo("  Version: %s\n", info.Version)
	printInfo("  Pointer size: %d\n", info.PointerSize)
	printInfo("  Records: %d\n", info.AddressCount)
	if len(table) > 0 {
		printInfo("  IDs: %d..%d\n", info.MinID, info.MaxID)
	}
	return nil
}
