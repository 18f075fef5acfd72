package config

import (
	"path/filepath"
	"testing"
)

func TestWriteReadCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")

	files := []TaskFile{
		{Name: "a", Cmd: "echo hi"},
		{Name: "b", After: []string{"a"}, Respawn: "retry(3)"},
	}
	if err := WriteCache(path, "v1", files); err != nil {
		t.Fatal(err)
	}

	got, err := ReadCache(path, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("got %+v", got)
	}
	if got[1].Respawn != "retry(3)" {
		t.Fatalf("respawn round-trip: got %q", got[1].Respawn)
	}
}

func TestReadCacheVersionMismatchRejectsWholesale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")
	if err := WriteCache(path, "v1", []TaskFile{{Name: "a"}}); err != nil {
		t.Fatal(err)
	}
	_, err := ReadCache(path, "v2")
	if err != ErrCacheVersionMismatch {
		t.Fatalf("got %v, want ErrCacheVersionMismatch", err)
	}
}
