package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestFullDeterministic(t *testing.T) {
	path := writeTempFile(t, []byte("the quick brown fox jumps over the lazy dog"))

	first, err := Full(path)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	second, err := Full(path)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if first != second {
		t.Errorf("Full is not deterministic: %q != %q", first, second)
	}
	if len(first) != 32 {
		t.Errorf("expected 32 hex characters for md5 digest, got %d", len(first))
	}
}

func TestFullDiffersOnContent(t *testing.T) {
	a := writeTempFile(t, []byte("alpha"))
	b := writeTempFile(t, []byte("beta"))

	da, err := Full(a)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	db, err := Full(b)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if da == db {
		t.Error("distinct contents produced identical digests")
	}
}

func TestPartialMatchesFullWhenSmall(t *testing.T) {
	content := []byte("small file content")
	path := writeTempFile(t, content)

	full, err := Full(path)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	partial, err := Partial(path, int64(len(content)))
	if err != nil {
		t.Fatalf("Partial: %v", err)
	}
	if full != partial {
		t.Errorf("Partial of a file <= 2*chunk should equal Full: %q != %q", partial, full)
	}
}

func TestPartialDiffersFromFullWhenLarge(t *testing.T) {
	content := make([]byte, 100)
	for i := range content {
		content[i] = byte(i)
	}
	// Corrupt only the middle of the file, outside the head/tail chunks.
	corrupted := make([]byte, len(content))
	copy(corrupted, content)
	corrupted[50] = ^corrupted[50]

	path := writeTempFile(t, content)
	corruptedPath := writeTempFile(t, corrupted)

	chunk := int64(10)

	partial, err := Partial(path, chunk)
	if err != nil {
		t.Fatalf("Partial: %v", err)
	}
	partialCorrupted, err := Partial(corruptedPath, chunk)
	if err != nil {
		t.Fatalf("Partial: %v", err)
	}
	if partial != partialCorrupted {
		t.Error("changing a byte outside the head/tail chunks should not change the partial digest")
	}

	full, err := Full(path)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	fullCorrupted, err := Full(corruptedPath)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if full == fullCorrupted {
		t.Error("Full should detect the mid-file change that Partial misses")
	}
}

func TestPartialDetectsHeadChange(t *testing.T) {
	content := make([]byte, 100)
	corrupted := make([]byte, 100)
	copy(corrupted, content)
	corrupted[0] = 1

	path := writeTempFile(t, content)
	corruptedPath := writeTempFile(t, corrupted)

	chunk := int64(10)
	partial, err := Partial(path, chunk)
	if err != nil {
		t.Fatalf("Partial: %v", err)
	}
	partialCorrupted, err := Partial(corruptedPath, chunk)
	if err != nil {
		t.Fatalf("Partial: %v", err)
	}
	if partial == partialCorrupted {
		t.Error("Partial should detect a change in the head chunk")
	}
}

func TestPartialRejectsNonPositiveChunk(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-positive chunk size")
		}
	}()
	Partial(writeTempFile(t, []byte("x")), 0)
}
