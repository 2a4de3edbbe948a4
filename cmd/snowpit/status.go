package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/snowpit-etl-service/internal/checkpoint"
	"github.com/couchcryptid/snowpit-etl-service/internal/config"
)

var statusCheckpoint string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress for a download",
	Long: `Status reads the checkpoint file a download writes after every chunk and
summarizes it: completed and failed chunks, pit totals, and per-chunk
results.

Examples:
  snowpit status
  snowpit status --checkpoint harvests/winter-2023.json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusCheckpoint, "checkpoint", "", "checkpoint file path (default $PROGRESS_FILE)")
}

func runStatus(_ *cobra.Command, _ []string) error {
	path := statusCheckpoint
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path = cfg.ProgressFile
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("No checkpoint at %s; nothing has been downloaded yet.\n", path)
		return nil
	}

	progress, err := checkpoint.NewStore(path, nil).Load()
	if err != nil {
		return err
	}

	fmt.Printf("Checkpoint:  %s\n", path)
	fmt.Printf("Started:     %s\n", progress.StartTime.Format("2006-01-02 15:04 MST"))
	fmt.Printf("Last update: %s\n", progress.LastUpdate.Format("2006-01-02 15:04 MST"))
	fmt.Printf("Completed:   %d chunks, %d pits\n", len(progress.CompletedChunks), progress.TotalPits)

	if len(progress.FailedChunks) > 0 {
		fmt.Printf("Failed:      %d chunks\n", len(progress.FailedChunks))
		for _, f := range progress.FailedChunks {
			fmt.Printf("  %s: %s (at %s)\n", f.ChunkID, f.Error, f.Timestamp.Format("2006-01-02 15:04"))
		}
	}

	if len(progress.ChunkResults) > 0 {
		ids := make([]string, 0, len(progress.ChunkResults))
		for id := range progress.ChunkResults {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		fmt.Println("Per-chunk results:")
		for _, id := range ids {
			summary := progress.ChunkResults[id]
			line := fmt.Sprintf("  %s: %d pits", id, summary.Pits)
			if summary.FileFailures > 0 {
				line += fmt.Sprintf(", %d unreadable files", summary.FileFailures)
			}
			fmt.Println(line)
		}
	}
	return nil
}
