package retrieval

import "time"

const dateLayout = "2006-01-02"

// Chunk is one inclusive date range of a chunked retrieval.
type Chunk struct {
	Start time.Time
	End   time.Time
}

// ID is the chunk's checkpoint identity. It depends only on the date
// bounds, so it is stable across runs.
func (c Chunk) ID() string {
	return c.Start.Format(dateLayout) + "_" + c.End.Format(dateLayout)
}

// SingleDay reports whether the chunk covers exactly one day.
func (c Chunk) SingleDay() bool {
	return c.Start.Equal(c.End)
}

// Days splits the chunk into its individual days, in order.
func (c Chunk) Days() []Chunk {
	var days []Chunk
	for d := c.Start; !d.After(c.End); d = d.AddDate(0, 0, 1) {
		days = append(days, Chunk{Start: d, End: d})
	}
	return days
}

// GenerateChunks splits [start, end] into consecutive spans of chunkDays
// days each, the final span clipped to end. Spans are contiguous,
// non-overlapping, and cover the range exactly. An end before start yields
// no chunks.
func GenerateChunks(start, end time.Time, chunkDays int) []Chunk {
	if chunkDays < 1 {
		chunkDays = 1
	}
	var chunks []Chunk
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, chunkDays) {
		chunkEnd := cur.AddDate(0, 0, chunkDays-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, Chunk{Start: cur, End: chunkEnd})
	}
	return chunks
}
