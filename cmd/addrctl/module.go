package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshuapare/addrkit/module"
)

var moduleStrict bool

func init() {
	cmd := newModuleCmd()
	cmd.Flags().BoolVar(&moduleStrict, "strict", false, "Classify the runtime from released versions only")
	rootCmd.AddCommand(cmd)
}

func newModuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "module <executable>",
		Short: "Inspect a host executable on disk",
		Long: `The module command parses a host executable as the resolver would:
preferred base, product version, runtime and segments.

Example:
  addrctl module SkyrimSE.exe
  addrctl module SkyrimVR.exe --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(args)
		},
	}
}

type segmentInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Offset  string `json:"offset"`
	Size    uint32 `json:"size"`
}

type moduleInfo struct {
	Name        string        `json:"name"`
	Path        string        `json:"path"`
	Base        string        `json:"base"`
	Version     string        `json:"version"`
	Runtime     string        `json:"runtime"`
	SegmentErr  string        `json:"segment_error,omitempty"`
	Segments    []segmentInfo `json:"segments"`
	LibraryFile string        `json:"library_file"`
}

func resolverFor(exe string, strict bool) *module.Resolver {
	return module.NewResolver(&module.Options{
		Host:          &module.FileHost{Dir: filepath.Dir(exe), Env: map[string]string{}},
		Candidates:    []string{filepath.Base(exe)},
		StrictRuntime: strict,
	})
}

func runModule(args []string) error {
	printVerbose("Parsing executable: %s\n", args[0])

	m, err := resolverFor(args[0], moduleStrict).Snapshot()
	if err != nil {
		return fmt.Errorf("failed to resolve module: %w", err)
	}

	info := moduleInfo{
		Name:        m.Name,
		Path:        m.FilePath,
		Base:        fmt.Sprintf("0x%X", m.Base),
		Version:     m.Version.String(),
		Runtime:     m.Runtime.String(),
		LibraryFile: fmt.Sprintf("%s-%s.bin", m.Runtime.LibraryPrefix(), m.Version),
	}
	if m.SegmentErr != nil {
		info.SegmentErr = m.SegmentErr.Error()
	}
	for _, name := range module.SegmentNames() {
		seg := m.Segment(name)
		if !seg.Present() {
			continue
		}
		info.Segments = append(info.Segments, segmentInfo{
			Name:    name.String(),
			Address: fmt.Sprintf("0x%X", seg.Address),
			Offset:  fmt.Sprintf("0x%X", seg.Offset()),
			Size:    seg.Size,
		})
	}

	if jsonOut {
		return printJSON(info)
	}
	printInfo("\nModule:\n")
	printInfo("  Name: %s\n", info.Name)
	printInfo("  Path: %s\n", info.Path)
	printInfo("  Base: %s\n", info.Base)
	printInfo("  Version: %s (%s)\n", info.Version, info.Runtime)
	printInfo("  Address library: %s\n", info.LibraryFile)
	if info.SegmentErr != "" {
		printInfo("  Segments unavailable: %s\n", info.SegmentErr)
		return nil
	}
	printInfo("\nSegments:\n")
	for _, s := range info.Segments {
		printInfo("  %-6s %s  +%-10s %d bytes\n", s.Name, s.Address, s.Offset, s.Size)
	}
	return nil
}
