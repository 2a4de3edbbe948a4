package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/snowpit-etl-service/internal/query"
	"github.com/couchcryptid/snowpit-etl-service/internal/retrieval"
)

// ChunkRetriever runs one season's chunk breakdown. *retrieval.Engine
// implements it.
type ChunkRetriever interface {
	RunChunks(ctx context.Context, f query.Filter, chunks []retrieval.Chunk) (*retrieval.Result, error)
}

// Runner executes a plan season by season.
type Runner struct {
	retriever ChunkRetriever
	logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(r ChunkRetriever, logger *slog.Logger) *Runner {
	return &Runner{retriever: r, logger: logger}
}

// Run executes every season in order and merges the results. A season
// that fails outright stops the plan; the partial result is returned
// alongside the error so completed seasons are not lost.
func (r *Runner) Run(ctx context.Context, p *Plan) (*retrieval.Result, error) {
	combined := &retrieval.Result{}
	for _, season := range p.Seasons {
		chunks := season.Chunks()
		r.logger.Info("season starting",
			"season", season.Name,
			"from", season.Start.Format(dateLayout),
			"to", season.End.Format(dateLayout),
			"chunks", len(chunks),
		)

		result, err := r.retriever.RunChunks(ctx, season.Filter(), chunks)
		combined.Merge(result)
		if err != nil {
			return combined, fmt.Errorf("season %s: %w", season.Name, err)
		}

		r.logger.Info("season finished",
			"season", season.Name,
			"pits", len(result.Pits),
			"failed_chunks", result.FailedChunks,
		)
	}
	return combined, nil
}
