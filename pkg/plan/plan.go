// Package plan implements the sync planner: given discovered source and
// destination catalogs, it computes the cheapest local filesystem operation
// for every source file and emits a deterministic, resumable shell script.
package plan

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/dirdb-go/dirdb/pkg/catalog"
	"github.com/dirdb-go/dirdb/pkg/logging"
	"github.com/dirdb-go/dirdb/pkg/sizeutil"
)

// catalogHandle pairs an opened store with its root, so results can be
// reported in a fixed discovery order rather than Go's randomized map
// iteration order.
type catalogHandle struct {
	root  string
	store *catalog.Store
}

// entry is a FileRecord annotated with the catalog it came from, used
// internally while matching.
type entry struct {
	catalog.FileRecord
	root string
}

// Planner computes and emits a sync script for a set of source and
// destination roots.
type Planner struct {
	dbname string
	logger *logging.Logger
}

// New creates a Planner. dbname is the catalog database filename used to
// discover nested catalogs beneath each root.
func New(dbname string, logger *logging.Logger) *Planner {
	return &Planner{dbname: dbname, logger: logger}
}

// discover opens every catalog at or beneath each of roots, in a fixed
// left-to-right, depth-first order, and returns the open handles. Callers
// must close every handle's store when done.
func (p *Planner) discover(roots []string) ([]catalogHandle, error) {
	var handles []catalogHandle

	for _, root := range roots {
		found, err := discoverCatalogs(root, p.dbname)
		if err != nil {
			return nil, err
		}
		for _, dir := range found {
			store, err := catalog.Open(dir, p.dbname)
			if err != nil {
				return nil, fmt.Errorf("opening catalog at %s: %w", dir, err)
			}
			handles = append(handles, catalogHandle{root: dir, store: store})
		}
	}

	return handles, nil
}

// discoverCatalogs returns root and every descendant directory containing
// dbname, in deterministic (sorted, depth-first) order.
func discoverCatalogs(root, dbname string) ([]string, error) {
	var found []string

	var walkFn func(dir string) error
	walkFn = func(dir string) error {
		if catalog.HasDatabase(dir, dbname) {
			found = append(found, dir)
		}

		entries, err := readDirSorted(dir)
		if err != nil {
			return err
		}
		for _, name := range entries {
			child := filepath.Join(dir, name)
			if isDir(child) {
				if err := walkFn(child); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walkFn(root); err != nil {
		return nil, err
	}

	return found, nil
}

// Plan runs the full matching algorithm over sources and destinations and
// writes the resulting shell script to w. It returns the number of actions
// emitted and the aggregate size of files missing from every destination.
func (p *Planner) Plan(sources, destinations []string, w io.Writer) (actions int, missingBytes uint64, err error) {
	sourceHandles, err := p.discover(sources)
	if err != nil {
		return 0, 0, err
	}
	defer closeHandles(sourceHandles)

	destHandles, err := p.discover(destinations)
	if err != nil {
		return 0, 0, err
	}
	defer closeHandles(destHandles)

	sourceEntries, err := gatherEntries(sourceHandles)
	if err != nil {
		return 0, 0, err
	}
	destEntries, err := gatherEntries(destHandles)
	if err != nil {
		return 0, 0, err
	}

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	fmt.Fprintln(bw, "#! /bin/sh -e")
	fmt.Fprintln(bw)

	var total sizeutil.ByteSize
	var actionCount int
	processed := make(map[string]bool) // content fingerprint already handled
	madeDirs := make(map[string]bool)  // directories already mkdir -p'd, run-wide

	bySourceRoot := groupByRoot(sourceEntries)

	for _, handle := range sourceHandles {
		ents := bySourceRoot[handle.root]
		if len(ents) == 0 {
			continue
		}

		sort.Slice(ents, func(i, j int) bool { return ents[i].Relpath < ents[j].Relpath })

		rootWriter := newCatalogScript(bw, handle.root, madeDirs)
		rootWriter.ensureStarted()

		for _, e := range ents {
			if e.Size == 0 {
				continue
			}

			fingerprintKey := fingerprintOf(e.FileRecord)
			if fingerprintKey == "" || processed[fingerprintKey] {
				continue
			}
			processed[fingerprintKey] = true

			L := matching(sourceEntries, e.Size, fingerprintKey)
			R := matching(destEntries, e.Size, fingerprintKey)

			n, missing := resolve(e, L, R, rootWriter)
			actionCount += n
			if missing != nil {
				total.Add(*missing)
			}
		}

		rootWriter.finish()
	}

	fmt.Fprintf(bw, "\n# %d action(s), %s still to transfer\n", actionCount, total.String())

	if p.logger != nil {
		p.logger.Summaryf("%d action(s), %s still to transfer", actionCount, total.String())
	}

	return actionCount, total.Uint64(), nil
}

// fingerprintOf normalizes a record's content key: parthash if present,
// otherwise hash. Per §9, the planner matches on whichever digest column a
// store actually populated.
func fingerprintOf(r catalog.FileRecord) string {
	if r.PartHash != "" {
		return r.PartHash
	}
	return r.Hash
}

func matching(entries []entry, size uint64, fingerprint string) []entry {
	var out []entry
	for _, e := range entries {
		if e.Size == size && fingerprintOf(e.FileRecord) == fingerprint {
			out = append(out, e)
		}
	}
	return out
}

func groupByRoot(entries []entry) map[string][]entry {
	out := make(map[string][]entry)
	for _, e := range entries {
		out[e.root] = append(out[e.root], e)
	}
	return out
}

func gatherEntries(handles []catalogHandle) ([]entry, error) {
	var out []entry
	for _, h := range handles {
		records, err := h.store.ListFiles()
		if err != nil {
			return nil, fmt.Errorf("listing files at %s: %w", h.root, err)
		}
		for _, r := range records {
			out = append(out, entry{FileRecord: r, root: h.root})
		}
	}
	return out, nil
}

func closeHandles(handles []catalogHandle) {
	for _, h := range handles {
		h.store.Close()
	}
}
