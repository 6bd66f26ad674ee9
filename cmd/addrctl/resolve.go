package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshuapare/addrkit/iddb"
	"github.com/joshuapare/addrkit/rel"
)

var (
	resolveDataDir string
	resolveStrict  bool
)

func init() {
	cmd := newResolveCmd()
	cmd.Flags().StringVar(&resolveDataDir, "data-dir", "",
		"Address library directory (default <executable dir>/"+iddb.DefaultDataDir+")")
	cmd.Flags().BoolVar(&resolveStrict, "strict", false, "Classify the runtime from released versions only")
	rootCmd.AddCommand(cmd)
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <executable> <id>...",
		Short: "Resolve ids to addresses against a host executable",
		Long: `The resolve command identifies the executable's version, loads the matching
address library into its shared table and prints the address of each id
relative to the executable's preferred base.

Example:
  addrctl resolve "C:/Games/Skyrim/SkyrimSE.exe" 11045 0x2B1C`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(args)
		},
	}
}

type resolveResult struct {
	ID      uint64 `json:"id"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runResolve(args []string) error {
	exe := args[0]
	ids, err := parseNumbers(args[1:])
	if err != nil {
		return err
	}
	dataDir := resolveDataDir
	if dataDir == "" {
		dataDir = filepath.Join(filepath.Dir(exe), iddb.DefaultDataDir)
	}

	ctx := rel.New(resolverFor(exe, resolveStrict), &iddb.Options{DataDir: dataDir})
	defer func() {
		if err := ctx.Close(); err != nil {
			printError("close address library: %v\n", err)
		}
	}()

	db, err := ctx.Database()
	if err != nil {
		return fmt.Errorf("failed to load address library: %w", err)
	}
	printVerbose("Loaded %s (region %s, decoded here: %v)\n", db.Path(), db.Name(), db.Created())

	results := make([]resolveResult, 0, len(ids))
	failed := 0
	for _, id := range ids {
		r := resolveResult{ID: id}
		addr, err := ctx.Address(rel.ID(id))
		if err != nil {
			r.Error = err.Error()
			failed++
		} else {
			r.Address = fmt.Sprintf("0x%X", addr)
		}
		results = append(results, r)
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Error != "" {
				printInfo("%d: %s\n", r.ID, r.Error)
				continue
			}
			printInfo("%d  %s\n", r.ID, r.Address)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d ids could not be resolved", failed, len(ids))
	}
	return nil
}
