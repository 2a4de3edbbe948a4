package plan

import (
	"time"

	"github.com/couchcryptid/snowpit-etl-service/internal/retrieval"
)

// ChunkSizeForMonth returns the chunk span in days for a chunk starting
// in the given month, sized to submission volume: peak winter needs
// small chunks to stay inside the page cap, summer can sweep two months
// per query.
func ChunkSizeForMonth(m time.Month) int {
	switch m {
	case time.December, time.January, time.February:
		return 7
	case time.November, time.March, time.April:
		return 14
	case time.May, time.October:
		return 30
	default:
		// June through September.
		return 60
	}
}

// AdaptiveChunks splits [start, end] into chunks whose span follows the
// month each chunk starts in. Like GenerateChunks, the result is
// contiguous, non-overlapping, and covers the range exactly.
func AdaptiveChunks(start, end time.Time) []retrieval.Chunk {
	var chunks []retrieval.Chunk
	for cur := start; !cur.After(end); {
		chunkEnd := cur.AddDate(0, 0, ChunkSizeForMonth(cur.Month())-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, retrieval.Chunk{Start: cur, End: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks
}
