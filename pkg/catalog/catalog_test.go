package catalog

import (
	"sort"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(dir, DefaultName)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertThenListFiles(t *testing.T) {
	store := openTestStore(t)

	record := FileRecord{Filename: "a.txt", Relpath: "a.txt", Size: 10, PartHash: "deadbeef"}
	if err := store.Insert(record); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	records, err := store.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Relpath != "a.txt" || records[0].PartHash != "deadbeef" {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if records[0].Hash != "" {
		t.Errorf("expected empty Hash, got %q", records[0].Hash)
	}
}

func TestFilesBySizeAndFingerprint(t *testing.T) {
	store := openTestStore(t)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	must(store.Insert(FileRecord{Filename: "a", Relpath: "a", Size: 5, PartHash: "h1"}))
	must(store.Insert(FileRecord{Filename: "b", Relpath: "b", Size: 5, PartHash: "h1"}))
	must(store.Insert(FileRecord{Filename: "c", Relpath: "c", Size: 5, PartHash: "h2"}))
	must(store.Insert(FileRecord{Filename: "d", Relpath: "d", Size: 9, PartHash: "h3"}))

	bySize, err := store.FilesBySize(5)
	if err != nil {
		t.Fatalf("FilesBySize: %v", err)
	}
	if len(bySize) != 3 {
		t.Errorf("expected 3 records of size 5, got %d", len(bySize))
	}

	byFingerprint, err := store.FilesByFingerprint(5, "h1")
	if err != nil {
		t.Fatalf("FilesByFingerprint: %v", err)
	}
	if len(byFingerprint) != 2 {
		t.Errorf("expected 2 records for (5, h1), got %d", len(byFingerprint))
	}
}

func TestDeleteByRelpath(t *testing.T) {
	store := openTestStore(t)

	if err := store.Insert(FileRecord{Filename: "a", Relpath: "a", Size: 1, PartHash: "h"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.DeleteByRelpath("a"); err != nil {
		t.Fatalf("DeleteByRelpath: %v", err)
	}

	records, err := store.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records after delete, got %d", len(records))
	}
}

func TestSubcatalogLifecycle(t *testing.T) {
	store := openTestStore(t)

	if err := store.UpsertSubcatalog("sub"); err != nil {
		t.Fatalf("UpsertSubcatalog: %v", err)
	}
	// Idempotent: upserting again should not duplicate the marker.
	if err := store.UpsertSubcatalog("sub"); err != nil {
		t.Fatalf("UpsertSubcatalog (second): %v", err)
	}

	markers, err := store.ListSubcatalogs()
	if err != nil {
		t.Fatalf("ListSubcatalogs: %v", err)
	}
	if len(markers) != 1 {
		t.Fatalf("expected 1 marker, got %d: %v", len(markers), markers)
	}

	if err := store.DeleteSubcatalog("sub"); err != nil {
		t.Fatalf("DeleteSubcatalog: %v", err)
	}
	markers, err = store.ListSubcatalogs()
	if err != nil {
		t.Fatalf("ListSubcatalogs: %v", err)
	}
	if len(markers) != 0 {
		t.Errorf("expected no markers after delete, got %d", len(markers))
	}
}

func TestConfigRoundtrip(t *testing.T) {
	store := openTestStore(t)

	if _, ok, err := store.GetConfig("partial_hash"); err != nil {
		t.Fatalf("GetConfig: %v", err)
	} else if ok {
		t.Error("expected missing key to report not-ok")
	}

	if err := store.SetConfig("partial_hash", "true"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	value, ok, err := store.GetConfig("partial_hash")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !ok || value != "true" {
		t.Errorf("expected (\"true\", true), got (%q, %v)", value, ok)
	}

	// Setting again replaces rather than duplicating.
	if err := store.SetConfig("partial_hash", "false"); err != nil {
		t.Fatalf("SetConfig (second): %v", err)
	}
	value, ok, err = store.GetConfig("partial_hash")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !ok || value != "false" {
		t.Errorf("expected (\"false\", true) after overwrite, got (%q, %v)", value, ok)
	}
}

func TestOpenReopensExistingDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, DefaultName)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Insert(FileRecord{Filename: "a", Relpath: "a", Size: 1, PartHash: "h"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	store.Close()

	// Reopening an existing database must not fail or lose data, and must
	// tolerate relations that already exist.
	reopened, err := Open(dir, DefaultName)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles after reopen: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record to survive reopen, got %d", len(records))
	}
}

func TestListFilesOrderIndependentButComplete(t *testing.T) {
	store := openTestStore(t)

	names := []string{"z", "a", "m"}
	for _, n := range names {
		if err := store.Insert(FileRecord{Filename: n, Relpath: n, Size: 1, PartHash: "h"}); err != nil {
			t.Fatalf("Insert(%s): %v", n, err)
		}
	}

	records, err := store.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r.Relpath)
	}
	sort.Strings(got)
	sort.Strings(names)

	if len(got) != len(names) {
		t.Fatalf("expected %d records, got %d", len(names), len(got))
	}
	for i := range got {
		if got[i] != names[i] {
			t.Errorf("missing record %q", names[i])
		}
	}
}
