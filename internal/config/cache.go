package config

import (
	"bufio"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// cacheDoc is the on-disk shape of a compiled cache: a version line
// followed by a YAML sequence of TaskFile. Keeping the version as a plain
// first line (rather than inside the YAML document) means a version
// mismatch can be rejected without parsing the rest of a possibly
// incompatible format.
type cacheDoc struct {
	Tasks []TaskFile `yaml:"tasks"`
}

// WriteCache writes the ordered task list to path as a version-stamped
// cache, the compiled form alfad-compile produces and init consults before
// falling back to re-reading the text directory.
func WriteCache(path string, version string, files []TaskFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintln(w, version); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(cacheDoc{Tasks: files}); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return w.Flush()
}

// ErrCacheVersionMismatch is returned by ReadCache when the cache's stamped
// version does not match the binary reading it; the caller falls back to
// re-reading the configuration directory from text.
var ErrCacheVersionMismatch = fmt.Errorf("config cache version mismatch")

// ReadCache reads a cache written by WriteCache. If the stamped version
// does not equal wantVersion, it returns ErrCacheVersionMismatch and no
// tasks, per spec: the cache is rejected wholesale, not partially trusted.
func ReadCache(path string, wantVersion string) ([]TaskFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	version, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read cache version: %w", err)
	}
	version = trimNewline(version)
	if version != wantVersion {
		return nil, ErrCacheVersionMismatch
	}

	var doc cacheDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return doc.Tasks, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
