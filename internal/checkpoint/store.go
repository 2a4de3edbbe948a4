// Package checkpoint persists retrieval progress as a JSON file so an
// interrupted run can resume without repeating completed work.
//
// The file is rewritten in full after every chunk. Exactly one retrieval
// process may own a checkpoint path at a time; concurrent writers are not
// supported.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
)

// FailedChunk records a chunk whose retries were exhausted.
type FailedChunk struct {
	ChunkID   string    `json:"chunk_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ChunkSummary is the per-chunk outcome kept for reporting.
type ChunkSummary struct {
	Pits         int `json:"pits"`
	FileFailures int `json:"file_failures,omitempty"`
}

// Progress is the on-disk checkpoint document.
type Progress struct {
	CompletedChunks []string                `json:"completed_chunks"`
	FailedChunks    []FailedChunk           `json:"failed_chunks"`
	TotalPits       int                     `json:"total_pits"`
	StartTime       time.Time               `json:"start_time"`
	LastUpdate      time.Time               `json:"last_update"`
	ChunkResults    map[string]ChunkSummary `json:"chunk_results"`
}

// NewProgress returns an empty progress document stamped with the given
// start time. Slices and maps are non-nil so the JSON renders [] and {}
// rather than null.
func NewProgress(start time.Time) *Progress {
	return &Progress{
		CompletedChunks: []string{},
		FailedChunks:    []FailedChunk{},
		StartTime:       start,
		ChunkResults:    map[string]ChunkSummary{},
	}
}

// IsCompleted reports whether a chunk finished in this or a previous run.
func (p *Progress) IsCompleted(chunkID string) bool {
	for _, id := range p.CompletedChunks {
		if id == chunkID {
			return true
		}
	}
	return false
}

// MarkCompleted records a finished chunk and its pit count. Completing a
// chunk again replaces its earlier summary, and clears any failure
// recorded for it by an earlier run.
func (p *Progress) MarkCompleted(chunkID string, summary ChunkSummary) {
	if prev, ok := p.ChunkResults[chunkID]; ok {
		p.TotalPits -= prev.Pits
	}
	if !p.IsCompleted(chunkID) {
		p.CompletedChunks = append(p.CompletedChunks, chunkID)
	}
	p.ChunkResults[chunkID] = summary
	p.TotalPits += summary.Pits

	kept := p.FailedChunks[:0]
	for _, f := range p.FailedChunks {
		if f.ChunkID != chunkID {
			kept = append(kept, f)
		}
	}
	p.FailedChunks = kept
}

// MarkFailed records a chunk whose retries were exhausted.
func (p *Progress) MarkFailed(chunkID string, cause error, at time.Time) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	p.FailedChunks = append(p.FailedChunks, FailedChunk{
		ChunkID:   chunkID,
		Error:     msg,
		Timestamp: at,
	})
}

// Store reads and writes a checkpoint file.
type Store struct {
	path  string
	clock clockwork.Clock
}

// NewStore returns a store for the given path. A nil clock selects the
// real clock.
func NewStore(path string, clk clockwork.Clock) *Store {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Store{path: path, clock: clk}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the checkpoint file. A missing file is not an error: it
// yields a fresh Progress stamped with the current time.
func (s *Store) Load() (*Progress, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewProgress(s.clock.Now().UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	if p.ChunkResults == nil {
		p.ChunkResults = map[string]ChunkSummary{}
	}
	return &p, nil
}

// Save rewrites the checkpoint file in full and stamps the update time.
func (s *Store) Save(p *Progress) error {
	p.LastUpdate = s.clock.Now().UTC()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
