package retrieval

import (
	"path/filepath"
	"strings"

	"github.com/couchcryptid/snowpit-etl-service/internal/domain"
)

// FileFailure records one extracted document that could not be parsed.
type FileFailure struct {
	Path string
	Err  error
}

// ChunkOutcome is everything one chunk produced.
type ChunkOutcome struct {
	Chunk        Chunk
	Pits         []*domain.SnowPit
	Failures     []FileFailure
	SkippedTests int
	Err          error
}

// Result aggregates a retrieval run. Pits concatenate in chunk order;
// a pit observed by two overlapping runs appears twice. Callers needing
// exactly-once use DedupedByPitID.
type Result struct {
	Pits            []*domain.SnowPit
	CompletedChunks int
	FailedChunks    int
	SkippedChunks   int
	EmptyChunks     int
	FileFailures    []FileFailure
	SkippedTests    int
}

// Merge folds another run's totals into this result, pits appended in
// run order.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Pits = append(r.Pits, other.Pits...)
	r.CompletedChunks += other.CompletedChunks
	r.FailedChunks += other.FailedChunks
	r.SkippedChunks += other.SkippedChunks
	r.EmptyChunks += other.EmptyChunks
	r.FileFailures = append(r.FileFailures, other.FileFailures...)
	r.SkippedTests += other.SkippedTests
}

// DedupedByPitID returns the pits with duplicate pit ids removed, keeping
// the first occurrence of each. The input order is preserved.
func (r *Result) DedupedByPitID() []*domain.SnowPit {
	seen := make(map[string]bool, len(r.Pits))
	deduped := make([]*domain.SnowPit, 0, len(r.Pits))
	for _, pit := range r.Pits {
		id := pit.CoreInfo.PitID
		if id != "" && seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, pit)
	}
	return deduped
}

// pitIDFromFilename extracts the numeric pit id embedded in an archive
// member name: the second-to-last dash-separated segment of
// "<name>-<id>-caaml.xml".
func pitIDFromFilename(name string) string {
	parts := strings.Split(filepath.Base(name), "-")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
