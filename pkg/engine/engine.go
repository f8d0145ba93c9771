// Package engine implements the catalog engine: it reconciles one or more
// filesystem roots against their catalog stores, discovering new files,
// pruning vanished ones and stale sub-catalog markers, and reporting
// probable moves and content duplicates.
package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dirdb-go/dirdb/pkg/catalog"
	"github.com/dirdb-go/dirdb/pkg/fingerprint"
	"github.com/dirdb-go/dirdb/pkg/logging"
	"github.com/dirdb-go/dirdb/pkg/sizeutil"
	"github.com/dirdb-go/dirdb/pkg/walk"
)

const (
	configPartialHash     = "partial_hash"
	configPartialHashSize = "partial_hash_size"

	defaultPartialHashSize = 4096
)

// Options configures an Engine run.
type Options struct {
	// DBName is the catalog database filename (default ".dir.db").
	DBName string
	// ScriptName is the filename the walker excludes from the starting
	// root (the sync planner's own output, so a stale script is never
	// catalogued as data).
	ScriptName string
	// PartialHash selects partial-hash mode for newly created stores.
	PartialHash bool
	// PartialHashSize is the chunk size (bytes) for partial-hash mode.
	PartialHashSize int64
	// ListDups requests a duplicate-group report after reconciliation.
	ListDups bool
	// Logger receives summary/trace/action output. May be nil.
	Logger *logging.Logger
}

// Engine reconciles catalog stores against the filesystem. It keeps every
// store it has opened so far alive for the duration of a run, since move
// detection and duplicate listing both need to search across all of them.
type Engine struct {
	opts   Options
	stores map[string]*catalog.Store // keyed by absolute root path
}

// New creates an Engine with the given options, filling in defaults.
func New(opts Options) *Engine {
	if opts.DBName == "" {
		opts.DBName = catalog.DefaultName
	}
	if opts.ScriptName == "" {
		opts.ScriptName = "update.sh"
	}
	if opts.PartialHashSize <= 0 {
		opts.PartialHashSize = defaultPartialHashSize
	}
	return &Engine{opts: opts, stores: make(map[string]*catalog.Store)}
}

// Close releases every store opened during the engine's lifetime.
func (e *Engine) Close() error {
	var firstErr error
	for _, store := range e.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stores returns every catalog store opened so far, keyed by absolute root
// path. The map is the engine's own; callers must not modify it.
func (e *Engine) Stores() map[string]*catalog.Store {
	return e.stores
}

func (e *Engine) storeFor(root string) (*catalog.Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}

	if store, ok := e.stores[abs]; ok {
		return store, nil
	}

	store, err := catalog.Open(abs, e.opts.DBName)
	if err != nil {
		return nil, fmt.Errorf("opening catalog at %s: %w", root, err)
	}

	if err := e.ensureConfig(store); err != nil {
		store.Close()
		return nil, err
	}

	e.stores[abs] = store
	return store, nil
}

// ensureConfig writes the engine's partial-hash configuration into a store
// that has none recorded yet (a freshly created store).
func (e *Engine) ensureConfig(store *catalog.Store) error {
	if _, ok, err := store.GetConfig(configPartialHash); err != nil {
		return fmt.Errorf("reading partial_hash config: %w", err)
	} else if ok {
		return nil
	}

	value := "false"
	if e.opts.PartialHash {
		value = "true"
	}
	if err := store.SetConfig(configPartialHash, value); err != nil {
		return fmt.Errorf("writing partial_hash config: %w", err)
	}
	if err := store.SetConfig(configPartialHashSize, fmt.Sprintf("%d", e.opts.PartialHashSize)); err != nil {
		return fmt.Errorf("writing partial_hash_size config: %w", err)
	}
	return nil
}

func (e *Engine) storeConfig(store *catalog.Store) (partialHash bool, chunkSize int64, err error) {
	value, ok, err := store.GetConfig(configPartialHash)
	if err != nil {
		return false, 0, fmt.Errorf("reading partial_hash config: %w", err)
	}
	partialHash = ok && value == "true"

	chunkSize = e.opts.PartialHashSize
	if sizeValue, ok, err := store.GetConfig(configPartialHashSize); err != nil {
		return false, 0, fmt.Errorf("reading partial_hash_size config: %w", err)
	} else if ok {
		var parsed int64
		if _, scanErr := fmt.Sscanf(sizeValue, "%d", &parsed); scanErr == nil && parsed > 0 {
			chunkSize = parsed
		}
	}

	return partialHash, chunkSize, nil
}

// Update reconciles each of roots against its catalog store(s), following
// §4.4's phases A through D, and logs a duplicate-group report if
// Options.ListDups is set.
func (e *Engine) Update(roots []string) error {
	for _, root := range roots {
		if err := e.updateRoot(root); err != nil {
			return err
		}
	}

	if e.opts.ListDups {
		if err := e.reportDuplicates(); err != nil {
			return err
		}
	}

	return nil
}

// updateRoot runs phases A-D for one root, descending into any nested
// catalogs the walk discovers.
func (e *Engine) updateRoot(root string) error {
	log := e.opts.Logger.Sublogger(filepath.Base(root))

	discoveredSubcatalogs := make(map[string][]string) // owning root -> newly seen sub relpaths
	filesByRoot := make(map[string][]walk.File)

	files, err := walk.Walk(root, e.opts.DBName, e.opts.ScriptName, func(parentRoot, relpath string) {
		discoveredSubcatalogs[parentRoot] = append(discoveredSubcatalogs[parentRoot], relpath)
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}

	for _, f := range files {
		filesByRoot[f.Root] = append(filesByRoot[f.Root], f)
	}

	// Phase A: gather new files per owning root.
	newFilesByRoot := make(map[string][]walk.File)
	for owningRoot, owned := range filesByRoot {
		store, err := e.storeFor(owningRoot)
		if err != nil {
			return err
		}

		for _, f := range owned {
			known, err := store.FilesBySize(fileSize(owningRoot, f))
			if err != nil {
				return fmt.Errorf("querying catalog at %s: %w", owningRoot, err)
			}

			matched := false
			for _, rec := range known {
				if rec.Relpath == f.Relpath {
					matched = true
					break
				}
			}
			if matched {
				continue
			}

			newFilesByRoot[owningRoot] = append(newFilesByRoot[owningRoot], f)
		}
	}

	// Phase B: ingestion.
	for owningRoot, newFiles := range newFilesByRoot {
		store, err := e.storeFor(owningRoot)
		if err != nil {
			return err
		}

		partialHash, chunkSize, err := e.storeConfig(store)
		if err != nil {
			return err
		}

		for _, f := range newFiles {
			full := filepath.Join(owningRoot, filepath.FromSlash(f.Relpath))

			size := fileSize(owningRoot, f)

			record := catalog.FileRecord{Filename: f.Name, Relpath: f.Relpath, Size: size}
			if partialHash {
				digest, err := fingerprint.Partial(full, chunkSize)
				if err != nil {
					return fmt.Errorf("hashing %s: %w", full, err)
				}
				record.PartHash = digest
			} else {
				digest, err := fingerprint.Full(full)
				if err != nil {
					return fmt.Errorf("hashing %s: %w", full, err)
				}
				record.Hash = digest
			}

			if err := store.Insert(record); err != nil {
				return err
			}
			log.Tracef("catalogued %s (%s)", f.Relpath, sizeutil.Approximate(size))
		}

		if err := store.Commit(); err != nil {
			return fmt.Errorf("committing catalog at %s: %w", owningRoot, err)
		}
	}

	// Record newly discovered sub-catalog markers against their parent
	// store.
	for owningRoot, relpaths := range discoveredSubcatalogs {
		store, err := e.storeFor(owningRoot)
		if err != nil {
			return err
		}
		for _, relpath := range relpaths {
			if err := store.UpsertSubcatalog(relpath); err != nil {
				return err
			}
			log.Summaryf("discovered nested catalog at %s", relpath)
		}
	}

	// Phase C: pruning.
	for owningRoot := range filesByRoot {
		if err := e.pruneStore(owningRoot, log); err != nil {
			return err
		}
	}
	// The root itself may have no files but still needs pruning (e.g. an
	// empty tree whose sub-catalog markers have gone stale).
	if _, ok := filesByRoot[root]; !ok {
		if err := e.pruneStore(root, log); err != nil {
			return err
		}
	}

	return nil
}

func fileSize(owningRoot string, f walk.File) uint64 {
	full := filepath.Join(owningRoot, filepath.FromSlash(f.Relpath))
	info, err := os.Lstat(full)
	if err != nil {
		return 0
	}
	return uint64(info.Size())
}

// pruneStore implements phase C and D for a single store: removes stale
// sub-catalog markers, reclaims records shadowed by a sub-catalog, deletes
// records for vanished files, and reports move/removal advisories.
func (e *Engine) pruneStore(root string, log *logging.Logger) error {
	store, err := e.storeFor(root)
	if err != nil {
		return err
	}

	markers, err := store.ListSubcatalogs()
	if err != nil {
		return err
	}
	for _, marker := range markers {
		if !catalog.HasDatabase(filepath.Join(root, filepath.FromSlash(marker)), e.opts.DBName) {
			if err := store.DeleteSubcatalog(marker); err != nil {
				return err
			}
			log.Summaryf("pruned stale sub-catalog marker %s", marker)
		}
	}

	markers, err = store.ListSubcatalogs()
	if err != nil {
		return err
	}

	records, err := store.ListFiles()
	if err != nil {
		return err
	}

	for _, rec := range records {
		if underAnyMarker(rec.Relpath, markers) {
			if err := store.DeleteByRelpath(rec.Relpath); err != nil {
				return err
			}
			log.Tracef("reclaimed %s (now under sub-catalog)", rec.Relpath)
			continue
		}

		full := filepath.Join(root, filepath.FromSlash(rec.Relpath))
		if _, err := os.Lstat(full); os.IsNotExist(err) {
			if err := store.DeleteByRelpath(rec.Relpath); err != nil {
				return err
			}
			e.reportMissing(rec, log)
		} else if err != nil {
			return fmt.Errorf("statting %s: %w", full, err)
		}
	}

	return store.Commit()
}

func underAnyMarker(relpath string, markers []string) bool {
	for _, marker := range markers {
		if relpath == marker || hasPrefixDir(relpath, marker) {
			return true
		}
	}
	return false
}

func hasPrefixDir(relpath, dir string) bool {
	return len(relpath) > len(dir) && relpath[:len(dir)] == dir && relpath[len(dir)] == '/'
}

// reportMissing implements phase D's move advisory: searches every open
// store for a record of the same size as the vanished one.
func (e *Engine) reportMissing(missing catalog.FileRecord, log *logging.Logger) {
	for _, store := range e.stores {
		candidates, err := store.FilesBySize(missing.Size)
		if err != nil || len(candidates) == 0 {
			continue
		}
		log.Actionf("possibly moved: %s (size %d) -> candidate %s", missing.Relpath, missing.Size, candidates[0].Relpath)
		return
	}
	log.Actionf("removed: %s (size %d)", missing.Relpath, missing.Size)
}

// reportDuplicates groups FileRecords with a non-empty Hash across every
// open store and logs each group with more than one member.
func (e *Engine) reportDuplicates() error {
	groups := make(map[string][]string) // hash -> "root:relpath"

	for root, store := range e.stores {
		records, err := store.ListFiles()
		if err != nil {
			return err
		}
		for _, rec := range records {
			if rec.Hash == "" {
				continue
			}
			groups[rec.Hash] = append(groups[rec.Hash], fmt.Sprintf("%s:%s", root, rec.Relpath))
		}
	}

	log := e.opts.Logger
	for hash, members := range groups {
		if len(members) > 1 {
			log.Actionf("duplicate group %s: %v", hash, members)
		}
	}

	return nil
}
