package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned by Load when no record exists for a run ID.
var ErrNotFound = errors.New("run record not found")

// CorruptRecordError is returned when a persisted record cannot be parsed
// into the full field set. Corrupt records are reported, never auto-repaired.
type CorruptRecordError struct {
	RunID string
	Err   error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt run record %s: %v", e.RunID, e.Err)
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}

// Store persists one JSON file per run under a directory. Every Save is a
// full-record overwrite via a temp file and rename, so readers never observe
// a partially written record.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the full record, replacing any prior version atomically.
func (s *Store) Save(r *Record) error {
	if err := r.validate(); err != nil {
		return fmt.Errorf("refusing to save invalid record: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating runs directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run record %s: %w", r.RunID, err)
	}
	path := s.path(r.RunID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing run record %s: %w", r.RunID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing run record %s: %w", r.RunID, err)
	}
	return nil
}

// Load reads the record for runID. Returns ErrNotFound if no record exists,
// or a CorruptRecordError if the file cannot be decoded into a full record.
func (s *Store) Load(runID string) (*Record, error) {
	if !validRunID(runID) {
		return nil, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	data, err := os.ReadFile(s.path(runID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run record %s: %w", runID, err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &CorruptRecordError{RunID: runID, Err: err}
	}
	if err := r.validate(); err != nil {
		return nil, &CorruptRecordError{RunID: runID, Err: err}
	}
	return &r, nil
}

// List returns all known run IDs, newest first. Run IDs sort
// chronologically, so plain string order is time order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// validRunID rejects IDs that would escape the runs directory.
func validRunID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
