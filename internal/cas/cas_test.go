package cas

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	id, err := s.PutBytes([]byte("hello, foia"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if id.SHA256 == "" || id.Blake3 == "" {
		t.Fatal("expected non-empty digests")
	}

	got, err := s.Get(id.SHA256)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello, foia" {
		t.Fatalf("got %q", got)
	}
}

func TestPutIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	id1, err := s.PutBytes([]byte("same bytes"))
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	id2, err := s.PutBytes([]byte("same bytes"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if id1.RelPath != id2.RelPath {
		t.Fatalf("expected same rel path, got %q and %q", id1.RelPath, id2.RelPath)
	}

	// Exactly one file should exist on disk at that path.
	full := filepath.Join(dir, id1.RelPath)
	if _, err := os.Stat(full); err != nil {
		t.Fatalf("expected blob file to exist: %v", err)
	}
}

func TestPutRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if _, err := s.PutBytes(nil); err != ErrEmptyInput {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if _, err := s.Get("deadbeef"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutConcurrentSameContent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	const n = 8
	var wg sync.WaitGroup
	ids := make([]Identity, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.PutBytes([]byte("concurrent payload"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for i := 1; i < n; i++ {
		if ids[i].RelPath != ids[0].RelPath {
			t.Fatalf("worker %d produced different path %q vs %q", i, ids[i].RelPath, ids[0].RelPath)
		}
	}
}
