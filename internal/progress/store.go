package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docpipe/internal/catalog"
	"docpipe/internal/fileutil"
)

// ErrCorruptState marks a state file that exists but cannot be parsed. The
// caller decides whether to treat all items as pending or abort.
var ErrCorruptState = errors.New("corrupt state file")

// CompletionProbe inspects disk artifacts to decide whether an item already
// satisfies the stage goal despite having no record, letting a store rebuild
// itself after the state file is lost. It returns the metadata to record
// alongside the rebuilt done status.
type CompletionProbe func(item catalog.WorkItem) (bool, Meta)

// Store owns one stage's durable progress file. Every mutation is flushed via
// atomic replace so a crash mid-write never leaves a half-written state file.
type Store struct {
	path  string
	stage string
	probe CompletionProbe

	records map[string]Record
	run     RunState
	dirty   bool
}

// Option customizes store construction.
type Option func(*Store)

// WithCompletionProbe installs the pluggable already-complete heuristic.
func WithCompletionProbe(probe CompletionProbe) Option {
	return func(s *Store) { s.probe = probe }
}

// StateFilename returns the state file name for a stage, e.g.
// ".fetch_state.json".
func StateFilename(stage string) string {
	return "." + stage + "_state.json"
}

// NewStore creates a store for one stage, persisting under the docs root.
func NewStore(docsRoot, stage string, opts ...Option) *Store {
	s := &Store{
		path:    filepath.Join(docsRoot, StateFilename(stage)),
		stage:   stage,
		records: make(map[string]Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the on-disk location of the stage state file.
func (s *Store) Path() string { return s.path }

// HasState reports whether the stage's state file exists on disk, i.e. the
// stage has been run at least once.
func (s *Store) HasState() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Stage returns the stage this store tracks.
func (s *Store) Stage() string { return s.stage }

type stateFile struct {
	Version int               `json:"version"`
	Run     RunState          `json:"run"`
	Items   map[string]Record `json:"items"`
}

// Load reads the state file. A missing file yields an empty store; a file
// that exists but cannot be parsed yields ErrCorruptState.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.records = make(map[string]Record)
			s.run = RunState{}
			return nil
		}
		return fmt.Errorf("read state file %s: %w", s.path, err)
	}
	var parsed stateFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}
	if parsed.Items == nil {
		parsed.Items = make(map[string]Record)
	}
	s.records = parsed.Items
	s.run = parsed.Run
	s.dirty = false
	return nil
}

// Flush persists the current view via write-to-temp-then-rename.
func (s *Store) Flush() error {
	payload := stateFile{Version: 1, Run: s.run, Items: s.records}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}

// Mark records a status transition for key and flushes immediately, so a
// done record is durable before the runner moves to the next item.
func (s *Store) Mark(key string, status Status, meta Meta, reason string) error {
	s.set(key, status, meta, reason)
	return s.Flush()
}

func (s *Store) set(key string, status Status, meta Meta, reason string) {
	s.records[key] = Record{
		Status:    status,
		Error:     reason,
		Meta:      meta,
		UpdatedAt: time.Now().UTC(),
	}
	s.dirty = true
}

// IsDone reports whether the item can be skipped. A recorded done status wins;
// otherwise the completion probe may certify the item from its on-disk
// artifact, in which case the rebuilt record is staged for the next flush.
func (s *Store) IsDone(key string, item catalog.WorkItem) bool {
	if rec, ok := s.records[key]; ok && rec.Status == StatusDone {
		return true
	}
	if s.probe == nil {
		return false
	}
	done, meta := s.probe(item)
	if !done {
		return false
	}
	s.set(key, StatusDone, meta, "")
	return true
}

// Record returns the stored record for key.
func (s *Store) Record(key string) (Record, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

// Records returns a copy of the per-item state.
func (s *Store) Records() map[string]Record {
	out := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// FailedKeys returns the keys currently recorded as failed.
func (s *Store) FailedKeys() map[string]struct{} {
	out := make(map[string]struct{})
	for k, rec := range s.records {
		if rec.Status == StatusFailed {
			out[k] = struct{}{}
		}
	}
	return out
}

// CountByStatus tallies records per status.
func (s *Store) CountByStatus() map[Status]int {
	out := make(map[Status]int, len(statusSet))
	for _, rec := range s.records {
		out[rec.Status]++
	}
	return out
}

// BeginRun resets the run state for a fresh invocation.
func (s *Store) BeginRun(runID string) {
	s.run = RunState{
		RunID:     runID,
		Stage:     s.stage,
		StartedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.dirty = true
}

// EndRun records how the invocation over this stage ended. The cursor points
// at the item the runner stopped on, empty on normal completion.
func (s *Store) EndRun(cause Cause, cursor, detail string) {
	s.run.Cause = cause
	s.run.Cursor = cursor
	s.run.Detail = detail
	s.run.UpdatedAt = time.Now().UTC()
	s.dirty = true
}

// RunState returns the last recorded run state.
func (s *Store) RunState() RunState { return s.run }

// Dirty reports whether in-memory state has diverged from disk.
func (s *Store) Dirty() bool { return s.dirty }
