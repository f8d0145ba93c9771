// Command dirdb catalogs directory trees and emits shell scripts that
// synchronize a destination tree toward a source tree using local moves and
// reflinked copies wherever the content already exists on the destination.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dirdb-go/dirdb/cmd"
	"github.com/dirdb-go/dirdb/pkg/catalog"
	"github.com/dirdb-go/dirdb/pkg/engine"
	"github.com/dirdb-go/dirdb/pkg/logging"
	"github.com/dirdb-go/dirdb/pkg/plan"
	"github.com/dirdb-go/dirdb/pkg/version"
)

var flags struct {
	verbosity       int
	dbfilename      string
	scriptname      string
	listDups        bool
	partialHash     bool
	partialHashSize int
	genSyncScript   bool
	sources         []string
	destinations    []string
	updates         []string
}

func main() {
	root := &cobra.Command{
		Use:          "dirdb",
		Short:        "Catalog directory trees and plan content-aware synchronization",
		Version:      version.Version,
		SilenceUsage: true,
	}

	root.Flags().CountVarP(&flags.verbosity, "verbose", "v", "increase verbosity (repeatable)")
	root.Flags().StringVar(&flags.dbfilename, "dbfilename", catalog.DefaultName, "catalog database filename")
	root.Flags().StringVar(&flags.scriptname, "scriptname", "update.sh", "output sync script filename")
	root.Flags().BoolVar(&flags.listDups, "list-dups", false, "print duplicate-content groups after updating")
	root.Flags().BoolVarP(&flags.partialHash, "partial-hash", "P", true, "use partial-content hashing")
	root.Flags().IntVar(&flags.partialHashSize, "partial-hash-size", 4096, "bytes per partial-hash chunk")
	root.Flags().BoolVarP(&flags.genSyncScript, "gen-sync-script", "g", false, "emit a sync script")
	root.Flags().StringArrayVarP(&flags.sources, "source", "s", nil, "source root (repeatable)")
	root.Flags().StringArrayVarP(&flags.destinations, "dest", "d", nil, "destination root (repeatable)")
	root.Flags().StringArrayVarP(&flags.updates, "update", "u", nil, "root to reconcile (repeatable)")

	root.Run = cmd.Mainify(run)

	root.SetArgs(os.Args[1:])

	if err := root.Execute(); err != nil {
		cmd.Fatal(err)
	}
}

// resolveIntent implements §4.6's CLI intent-resolution rules, returning
// the roots to reconcile and, if a script should be generated, the sources
// and destinations to plan across.
func resolveIntent() (updateRoots []string, genScript bool, sources, destinations []string) {
	genScript = flags.genSyncScript

	switch {
	case len(flags.updates) == 0 && !flags.genSyncScript && len(flags.destinations) > 0:
		genScript = true
		sources = flags.sources
		if len(sources) == 0 {
			sources = []string{"."}
		}
		destinations = flags.destinations
	case len(flags.sources) > 0 && len(flags.destinations) == 0 && len(flags.updates) == 0:
		updateRoots = flags.sources
	default:
		updateRoots = flags.updates
		if len(updateRoots) == 0 {
			updateRoots = []string{"."}
		}
		sources = flags.sources
		destinations = flags.destinations
	}

	return updateRoots, genScript, sources, destinations
}

func run(command *cobra.Command, arguments []string) error {
	logger := logging.NewLogger(logging.LevelForCount(flags.verbosity))

	updateRoots, genScript, sources, destinations := resolveIntent()

	eng := engine.New(engine.Options{
		DBName:          flags.dbfilename,
		ScriptName:      flags.scriptname,
		PartialHash:     flags.partialHash,
		PartialHashSize: int64(flags.partialHashSize),
		ListDups:        flags.listDups,
		Logger:          logger,
	})
	defer eng.Close()

	if err := eng.Update(updateRoots); err != nil {
		return fmt.Errorf("updating catalogs: %w", err)
	}

	if !genScript {
		return nil
	}

	scriptFile, err := os.Create(flags.scriptname)
	if err != nil {
		return fmt.Errorf("creating script %s: %w", flags.scriptname, err)
	}
	defer scriptFile.Close()

	planner := plan.New(flags.dbfilename, logger)
	actions, missing, err := planner.Plan(sources, destinations, scriptFile)
	if err != nil {
		return fmt.Errorf("planning sync script: %w", err)
	}

	if err := scriptFile.Chmod(0o755); err != nil {
		return fmt.Errorf("making %s executable: %w", flags.scriptname, err)
	}

	logger.Summaryf("wrote %s: %d action(s) planned, %d byte(s) still to transfer", flags.scriptname, actions, missing)

	return nil
}
