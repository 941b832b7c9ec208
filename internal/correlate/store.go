// Package correlate persists old-ID → new-ID maps between migration phases.
// Each phase is invoked independently; a later phase (say, product attribute
// values) resolves legacy foreign keys against the entities an earlier phase
// created by reloading that phase's correlation artifact.
//
// Artifacts are JSON files, one per entity type, written only after the
// writer's commit succeeds so a crashed run never leaves a file referencing
// uncommitted rows.
package correlate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry correlates one natural key with its target surrogate ID. OldID is a
// string because natural keys are text (SKUs, names, codes); synthesized
// variants correlate by their synthesized SKU.
type Entry struct {
	OldID string `json:"old_id"`
	NewID int64  `json:"new_id"`
}

// artifact is the on-disk shape. RunID ties the file to a run summary.
type artifact struct {
	EntityType string    `json:"entity_type"`
	RunID      string    `json:"run_id"`
	WrittenAt  time.Time `json:"written_at"`
	Entries    []Entry   `json:"entries"`
}

// Store reads and writes correlation artifacts under one directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created on first
// Persist.
func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) path(entityType string) string {
	return filepath.Join(s.dir, entityType+"_id_map.json")
}

// Persist writes the full entry set for entityType, replacing any previous
// artifact. The write goes through a temp file and rename so readers never
// observe a partial file.
func (s *Store) Persist(entityType, runID string, entries []Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("correlation dir: %w", err)
	}
	data, err := json.MarshalIndent(artifact{
		EntityType: entityType,
		RunID:      runID,
		WrittenAt:  time.Now().UTC(),
		Entries:    entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s correlations: %w", entityType, err)
	}
	tmp := s.path(entityType) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s correlations: %w", entityType, err)
	}
	if err := os.Rename(tmp, s.path(entityType)); err != nil {
		return fmt.Errorf("publish %s correlations: %w", entityType, err)
	}
	return nil
}

// Load reads the artifact for entityType into an old→new map. A missing file
// is an error: phase ordering is an operational runbook and running a
// dependent phase first is an operator mistake worth failing loudly on.
func (s *Store) Load(entityType string) (map[string]int64, error) {
	data, err := os.ReadFile(s.path(entityType))
	if err != nil {
		return nil, fmt.Errorf("load %s correlations (did the %s phase run?): %w", entityType, entityType, err)
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse %s correlations: %w", entityType, err)
	}
	out := make(map[string]int64, len(a.Entries))
	for _, e := range a.Entries {
		out[e.OldID] = e.NewID
	}
	return out, nil
}
