package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/snowpit-etl-service/internal/adapter/snowpilot"
	"github.com/couchcryptid/snowpit-etl-service/internal/retrieval"
)

type estimateOptions struct {
	filterFlags
	chunkDays int
}

var estimateFlags estimateOptions

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Preview a download without retrieving pits",
	Long: `Estimate shows the chunk breakdown a download would use and counts the
pits the query matches. The count costs one archive download for the full
range; nothing is extracted or kept.

Examples:
  snowpit estimate --from 2023-01-01 --to 2023-03-31 --states MT,CO
  snowpit estimate --username frosty --chunk-days 14`,
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateFlags.register(estimateCmd)
	estimateCmd.Flags().IntVar(&estimateFlags.chunkDays, "chunk-days", 0, "days per chunk (default 7)")
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	if err := rt.cfg.RequireCredentials(); err != nil {
		return err
	}

	session, err := snowpilot.NewSession(snowpilot.Config{
		BaseURL:      rt.cfg.BaseURL,
		User:         rt.cfg.Credentials.User,
		Password:     rt.cfg.Credentials.Password,
		RequestDelay: rt.cfg.RequestDelay,
		MaxRetries:   rt.cfg.MaxRetries,
	}, rt.logger, rt.metrics, nil)
	if err != nil {
		return err
	}

	f, err := estimateFlags.filter()
	if err != nil {
		return err
	}

	engine := retrieval.New(session, nil, retrieval.Config{ChunkDays: estimateFlags.chunkDays}, rt.logger, rt.metrics, nil)
	est, err := engine.Estimate(cmd.Context(), f)
	if err != nil {
		return err
	}

	fmt.Printf("Chunks (%d):\n", len(est.Chunks))
	for _, c := range est.Chunks {
		fmt.Printf("  %s\n", c.ID())
	}
	fmt.Printf("Estimated pits: %d\n", est.PitCount)
	if est.PitCount > approvalThreshold {
		fmt.Printf("Downloading this range will ask for confirmation (over %d pits).\n", approvalThreshold)
	}
	return nil
}
