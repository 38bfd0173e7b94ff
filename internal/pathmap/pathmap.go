// Package pathmap translates host-shaped paths into workspace-relative
// remote paths. Tool calls and argv tokens may refer to files by bare
// name in the host's cwd, by an absolute host-home path, or by some other
// absolute path with no meaning inside the remote workspace; Map picks a
// single, cached, deterministic remote path for each.
package pathmap

import (
	"path/filepath"
	"strings"
	"sync"
)

// systemPrefixes are leading path components stripped from unknown
// absolute host paths because they carry no meaning in the workspace.
var systemPrefixes = map[string]bool{
	"Users":        true,
	"usr":          true,
	"var":          true,
	"Library":      true,
	"System":       true,
	"Applications": true,
}

const daytonaHome = "/home/daytona"

// Mapper resolves host paths to remote paths and caches the results.
// It is safe for concurrent use.
type Mapper struct {
	rootDir string
	home    string

	mu    sync.Mutex
	cache map[string]string
}

// New creates a Mapper rooted at rootDir, treating home as the host's
// home directory for the purpose of the host-home-relative rule.
func New(rootDir, home string) *Mapper {
	return &Mapper{
		rootDir: rootDir,
		home:    home,
		cache:   make(map[string]string),
	}
}

// RootDir returns the workspace root this mapper was constructed with.
func (m *Mapper) RootDir() string { return m.rootDir }

// Map resolves a host path h to a remote path. It is total once the
// mapper is constructed and stable: results are cached per input, so
// repeated calls with the same h return the same value. Feeding a result
// back into Map returns it unchanged only when it contains /home/daytona
// (the pass-through rule); other results are mapped again.
func (m *Mapper) Map(h string) string {
	m.mu.Lock()
	if cached, ok := m.cache[h]; ok {
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	remote := m.resolve(h)

	m.mu.Lock()
	m.cache[h] = remote
	m.mu.Unlock()
	return remote
}

func (m *Mapper) resolve(h string) string {
	if !filepath.IsAbs(h) {
		if !strings.ContainsAny(h, `/\`) {
			// Simple filename: not absolute, no separator.
			return filepath.Join(m.rootDir, h)
		}
		return filepath.Join(m.rootDir, h)
	}

	if m.home != "" && strings.HasPrefix(h, m.home) {
		rel := strings.TrimPrefix(h, m.home)
		rel = strings.TrimPrefix(rel, string(filepath.Separator))
		return filepath.Join(m.rootDir, rel)
	}

	if strings.Contains(h, daytonaHome) {
		return h
	}

	return filepath.Join(m.rootDir, stripSystemPrefixes(h))
}

// stripSystemPrefixes drops leading path components that belong to
// systemPrefixes and returns the remaining tail, joined with "/".
func stripSystemPrefixes(h string) string {
	parts := strings.Split(strings.TrimPrefix(h, "/"), "/")
	i := 0
	for i < len(parts) && systemPrefixes[parts[i]] {
		i++
	}
	return strings.Join(parts[i:], "/")
}

// Clear empties the cache. Called during cleanup.
func (m *Mapper) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]string)
}

// Len returns the number of cached entries, mostly useful for tests.
func (m *Mapper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}
