// Package catalog implements the per-directory content catalog: a small
// embedded SQL database recording the files known under one directory root,
// the nested catalogs that shadow parts of it, and per-store configuration.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DefaultName is the default catalog database filename created at a root.
const DefaultName = ".dir.db"

// FileRecord is one catalog entry: a file known under a store's root.
// Exactly one of Hash or PartHash is expected to be populated, per the
// store's partial_hash configuration at the time of insertion.
type FileRecord struct {
	Filename string
	Relpath  string
	Size     uint64
	Hash     string
	PartHash string
}

// Store is a single catalog database bound to one root directory.
type Store struct {
	db   *sql.DB
	root string
	path string
}

// Open opens or creates the catalog database at root/name, ensuring its
// three logical relations exist. Any relation missing from an existing
// database (corruption recovery) is recreated without touching the others.
func Open(root, name string) (*Store, error) {
	path := filepath.Join(root, name)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening catalog database %s", path)
	}

	store := &Store{db: db, root: root, path: path}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the filesystem path of the store's backing database file.
func (s *Store) Path() string {
	return s.path
}

// Root returns the directory the store is bound to.
func (s *Store) Root() string {
	return s.root
}

// Close releases the store's database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ensureSchema creates any of the three relations (files, sub_dbs, config)
// that do not already exist.
func (s *Store) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS files (
			filename TEXT NOT NULL,
			relpath TEXT NOT NULL,
			size INTEGER NOT NULL,
			hash TEXT,
			parthash TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS files_relpath_idx ON files(relpath)`,
		`CREATE INDEX IF NOT EXISTS files_size_idx ON files(size)`,
		`CREATE INDEX IF NOT EXISTS files_size_parthash_idx ON files(size, parthash)`,
		`CREATE TABLE IF NOT EXISTS sub_dbs (
			relpath TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS config (
			key TEXT NOT NULL,
			value TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "ensuring catalog schema at %s", s.path)
		}
	}

	return nil
}

// ListFiles returns every FileRecord in the store. No particular order is
// guaranteed beyond what the underlying query returns.
func (s *Store) ListFiles() ([]FileRecord, error) {
	rows, err := s.db.Query(`SELECT filename, relpath, size, hash, parthash FROM files`)
	if err != nil {
		return nil, errors.Wrap(err, "listing files")
	}
	defer rows.Close()

	return scanFileRecords(rows)
}

// FilesBySize returns every FileRecord in the store whose size equals n.
func (s *Store) FilesBySize(n uint64) ([]FileRecord, error) {
	rows, err := s.db.Query(`SELECT filename, relpath, size, hash, parthash FROM files WHERE size = ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "querying files by size")
	}
	defer rows.Close()

	return scanFileRecords(rows)
}

// FilesByFingerprint returns every FileRecord in the store whose size and
// parthash equal the given values.
func (s *Store) FilesByFingerprint(size uint64, parthash string) ([]FileRecord, error) {
	rows, err := s.db.Query(
		`SELECT filename, relpath, size, hash, parthash FROM files WHERE size = ? AND parthash = ?`,
		size, parthash,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying files by fingerprint")
	}
	defer rows.Close()

	return scanFileRecords(rows)
}

func scanFileRecords(rows *sql.Rows) ([]FileRecord, error) {
	var records []FileRecord
	for rows.Next() {
		var (
			r        FileRecord
			hash     sql.NullString
			parthash sql.NullString
		)
		if err := rows.Scan(&r.Filename, &r.Relpath, &r.Size, &hash, &parthash); err != nil {
			return nil, errors.Wrap(err, "scanning file record")
		}
		r.Hash = hash.String
		r.PartHash = parthash.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating file records")
	}
	return records, nil
}

// Insert adds a FileRecord to the store. The caller is expected to have
// populated exactly one of Hash/PartHash per the store's configuration.
func (s *Store) Insert(r FileRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO files (filename, relpath, size, hash, parthash) VALUES (?, ?, ?, ?, ?)`,
		r.Filename, r.Relpath, r.Size, nullableString(r.Hash), nullableString(r.PartHash),
	)
	if err != nil {
		return errors.Wrapf(err, "inserting file record for %s", r.Relpath)
	}
	return nil
}

// DeleteByRelpath removes any FileRecord with the given relpath.
func (s *Store) DeleteByRelpath(relpath string) error {
	_, err := s.db.Exec(`DELETE FROM files WHERE relpath = ?`, relpath)
	if err != nil {
		return errors.Wrapf(err, "deleting file record for %s", relpath)
	}
	return nil
}

// UpsertSubcatalog records a nested catalog at relpath, if not already
// recorded.
func (s *Store) UpsertSubcatalog(relpath string) error {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM sub_dbs WHERE relpath = ?)`, relpath).Scan(&exists)
	if err != nil {
		return errors.Wrapf(err, "checking sub-catalog marker for %s", relpath)
	}
	if exists {
		return nil
	}

	if _, err := s.db.Exec(`INSERT INTO sub_dbs (relpath) VALUES (?)`, relpath); err != nil {
		return errors.Wrapf(err, "inserting sub-catalog marker for %s", relpath)
	}
	return nil
}

// DeleteSubcatalog removes the sub-catalog marker at relpath.
func (s *Store) DeleteSubcatalog(relpath string) error {
	if _, err := s.db.Exec(`DELETE FROM sub_dbs WHERE relpath = ?`, relpath); err != nil {
		return errors.Wrapf(err, "deleting sub-catalog marker for %s", relpath)
	}
	return nil
}

// ListSubcatalogs returns the relpaths of every nested catalog marker
// recorded directly in this store.
func (s *Store) ListSubcatalogs() ([]string, error) {
	rows, err := s.db.Query(`SELECT relpath FROM sub_dbs`)
	if err != nil {
		return nil, errors.Wrap(err, "listing sub-catalogs")
	}
	defer rows.Close()

	var relpaths []string
	for rows.Next() {
		var relpath string
		if err := rows.Scan(&relpath); err != nil {
			return nil, errors.Wrap(err, "scanning sub-catalog marker")
		}
		relpaths = append(relpaths, relpath)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating sub-catalog markers")
	}
	return relpaths, nil
}

// GetConfig returns the value stored for key, and whether it was present.
func (s *Store) GetConfig(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "reading config key %s", key)
	}
	return value, true, nil
}

// SetConfig sets key to value, replacing any prior value.
func (s *Store) SetConfig(key, value string) error {
	if _, err := s.db.Exec(`DELETE FROM config WHERE key = ?`, key); err != nil {
		return errors.Wrapf(err, "clearing config key %s", key)
	}
	if _, err := s.db.Exec(`INSERT INTO config (key, value) VALUES (?, ?)`, key, value); err != nil {
		return errors.Wrapf(err, "setting config key %s", key)
	}
	return nil
}

// Commit is a no-op placeholder establishing a durable point; database/sql's
// auto-commit mode already durably flushes each statement, but callers use
// Commit to mark phase boundaries explicitly, matching the engine's commit
// points described for the reconciliation phases.
func (s *Store) Commit() error {
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// HasDatabase reports whether a catalog database file named name exists
// directly inside dir.
func HasDatabase(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}

// String implements fmt.Stringer for diagnostic messages.
func (r FileRecord) String() string {
	return fmt.Sprintf("%s (size=%d)", r.Relpath, r.Size)
}
