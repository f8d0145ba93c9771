// Package walk enumerates the regular files beneath a directory root,
// stopping short of any nested catalog it discovers along the way so that
// ownership of a subtree can shift from a parent catalog to its own store.
package walk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// File is one file discovered by a walk: its owning root (the directory
// that directly hosts the catalog responsible for it) and its path relative
// to that root.
type File struct {
	// Root is the path of the owning catalog's directory.
	Root string
	// Relpath is the path of the file relative to Root, slash-separated,
	// Unicode-NFC-normalized, never beginning with "/".
	Relpath string
	// Name is the file's basename (NFC-normalized).
	Name string
}

// Walk enumerates every regular file at or below root, excluding:
//   - any file named dbname directly inside the directory that owns it,
//   - the file named scriptname directly inside root itself,
//   - any subtree rooted at a directory that itself contains a dbname
//     file — such a directory is reported via onSubcatalog (relative to
//     its parent catalog's root) and walked under its own ownership, so
//     its files are returned with a distinct File.Root rather than root's.
//
// onSubcatalog, if non-nil, is invoked once per discovered nested catalog
// directory with the path of its immediate parent catalog's root and its
// own path relative to that root (slash-separated, NFC-normalized). Only
// regular files (confirmed via os.Lstat) are reported; symlinks, devices,
// sockets, and directories themselves are skipped.
func Walk(root, dbname, scriptname string, onSubcatalog func(parentRoot, relpath string)) ([]File, error) {
	var files []File

	if err := walkDir(root, root, dbname, scriptname, onSubcatalog, &files); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Relpath < files[j].Relpath })

	return files, nil
}

// walkDir scans dir, reporting files under ownership of owningRoot, and
// recurses into subdirectories. A subdirectory that itself hosts a catalog
// database starts a fresh recursion with itself as the new owningRoot.
func walkDir(owningRoot, dir, dbname, scriptname string, onSubcatalog func(string, string), files *[]File) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		info, err := os.Lstat(full)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if hasCatalogFile(full, dbname) {
				relpath := relpathOf(owningRoot, full)
				if onSubcatalog != nil {
					onSubcatalog(owningRoot, relpath)
				}
				if err := walkDir(full, full, dbname, "", onSubcatalog, files); err != nil {
					return err
				}
				continue
			}

			if err := walkDir(owningRoot, full, dbname, scriptname, onSubcatalog, files); err != nil {
				return err
			}
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		if entry.Name() == dbname {
			continue
		}

		if dir == owningRoot && entry.Name() == scriptname {
			continue
		}

		*files = append(*files, File{
			Root:    owningRoot,
			Relpath: relpathOf(owningRoot, full),
			Name:    normalizeComponent(entry.Name()),
		})
	}

	return nil
}

// hasCatalogFile reports whether dir directly contains a regular file named
// dbname.
func hasCatalogFile(dir, dbname string) bool {
	info, err := os.Lstat(filepath.Join(dir, dbname))
	return err == nil && info.Mode().IsRegular()
}

// relpathOf computes full's path relative to root, slash-separated and
// NFC-normalized component by component, so relpath equality is stable
// across hosts that decompose Unicode filenames differently.
func relpathOf(root, full string) string {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		rel = full
	}
	return normalizePath(filepath.ToSlash(rel))
}

func normalizePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = normalizeComponent(s)
	}
	return strings.Join(segments, "/")
}

func normalizeComponent(s string) string {
	return norm.NFC.String(s)
}
