package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
)

// LocalBackend persists ledger entries to a local JSON file: load the
// whole file, mutate, and write it back with indentation. A mutex guards
// read-modify-write sequences since this backend is called concurrently
// from Service.
type LocalBackend struct {
	mu   sync.Mutex
	Path string
}

// NewLocalBackend creates a local JSON-file ledger backend at path.
func NewLocalBackend(path string) *LocalBackend {
	return &LocalBackend{Path: path}
}

type ledgerFile struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

func (b *LocalBackend) load() ([]Entry, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var lf ledgerFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, err
	}
	return lf.Entries, nil
}

func (b *LocalBackend) save(entries []Entry) error {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	data, err := json.MarshalIndent(ledgerFile{Version: "1.0", Entries: entries}, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(b.Path, data, 0644)
}

// Append adds e to the file, preserving earlier entries.
func (b *LocalBackend) Append(ctx context.Context, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.load()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	return b.save(entries)
}

// List returns the most recent entries, newest first.
func (b *LocalBackend) List(ctx context.Context, limit int) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close is a no-op for the local file backend.
func (b *LocalBackend) Close() error { return nil }
