package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/snowpit-etl-service/internal/adapter/http"
	"github.com/couchcryptid/snowpit-etl-service/internal/adapter/snowpilot"
	"github.com/couchcryptid/snowpit-etl-service/internal/checkpoint"
	"github.com/couchcryptid/snowpit-etl-service/internal/plan"
	"github.com/couchcryptid/snowpit-etl-service/internal/retrieval"
)

// approvalThreshold is the estimated pit count above which download asks
// before proceeding; largeHarvestThreshold adds a sizing warning.
const (
	approvalThreshold     = 100
	largeHarvestThreshold = 1000
)

type downloadOptions struct {
	filterFlags
	chunkDays   int
	dayFallback bool
	dest        string
	checkpoint  string
	planPath    string
	yes         bool
	serve       bool
}

var downloadFlags downloadOptions

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download snow pits chunk by chunk",
	Long: `Download splits the requested date range into chunks, retrieves each
chunk's CAAML archive, and extracts the documents into the destination
directory. Progress is checkpointed after every chunk, so an interrupted
run resumes where it stopped.

Large downloads (over 100 estimated pits) ask for confirmation first;
--yes skips the prompt.

Examples:
  snowpit download --from 2023-01-01 --to 2023-01-31 --states MT
  snowpit download --plan winters.yaml --serve
  snowpit download --from 2023-12-01 --to 2024-03-31 --yes`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadFlags.register(downloadCmd)
	downloadCmd.Flags().IntVar(&downloadFlags.chunkDays, "chunk-days", 0, "days per chunk (default 7)")
	downloadCmd.Flags().BoolVar(&downloadFlags.dayFallback, "day-fallback", false, "retry a failed chunk day by day before recording it failed")
	downloadCmd.Flags().StringVar(&downloadFlags.dest, "dest", "", "destination directory for CAAML documents (default $SNOWPIT_DIR)")
	downloadCmd.Flags().StringVar(&downloadFlags.checkpoint, "checkpoint", "", "checkpoint file path (default $PROGRESS_FILE)")
	downloadCmd.Flags().StringVar(&downloadFlags.planPath, "plan", "", "run a YAML harvest plan instead of a single date range")
	downloadCmd.Flags().BoolVar(&downloadFlags.yes, "yes", false, "skip the confirmation prompt")
	downloadCmd.Flags().BoolVar(&downloadFlags.serve, "serve", false, "expose the ops HTTP endpoints while the download runs")
}

func runDownload(cmd *cobra.Command, _ []string) error {
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

	dest := downloadFlags.dest
	if dest == "" {
		dest = rt.cfg.PitsDir
	}
	checkpointPath := downloadFlags.checkpoint
	if checkpointPath == "" {
		checkpointPath = rt.cfg.ProgressFile
	}

	store := checkpoint.NewStore(checkpointPath, nil)
	engine := retrieval.New(session, store, retrieval.Config{
		DestDir:     dest,
		ChunkDays:   downloadFlags.chunkDays,
		ChunkDelay:  rt.cfg.ChunkDelay,
		DayFallback: downloadFlags.dayFallback,
	}, rt.logger, rt.metrics, nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if downloadFlags.serve {
		srv := httpadapter.NewServer(rt.cfg.HTTPAddr, engine, store, rt.logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.logger.Error("ops server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.logger.Error("ops server shutdown error", "error", err)
			}
		}()
	}

	if downloadFlags.planPath != "" {
		return runPlanDownload(ctx, rt, engine)
	}
	return runRangeDownload(ctx, engine)
}

func runRangeDownload(ctx context.Context, engine *retrieval.Engine) error {
	f, err := downloadFlags.filter()
	if err != nil {
		return err
	}

	if !downloadFlags.yes {
		est, err := engine.Estimate(ctx, f)
		if err != nil {
			return err
		}
		fmt.Printf("Estimated %d pits across %d chunks.\n", est.PitCount, len(est.Chunks))
		if est.PitCount > approvalThreshold {
			if est.PitCount > largeHarvestThreshold {
				fmt.Println("This is a large harvest; consider splitting it into a --plan with season-adaptive chunks.")
			}
			ok, err := confirm(fmt.Sprintf("Download %d pits?", est.PitCount))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}
	}

	result, err := engine.Run(ctx, f)
	printResult(result)
	return err
}

func runPlanDownload(ctx context.Context, rt *runtime, engine *retrieval.Engine) error {
	p, err := plan.Load(downloadFlags.planPath)
	if err != nil {
		return err
	}

	if !downloadFlags.yes {
		fmt.Printf("Plan %s:\n", downloadFlags.planPath)
		for _, s := range p.Seasons {
			fmt.Printf("  %-20s %s .. %s  (%d chunks)\n",
				s.Name, s.Start.Format(dateLayout), s.End.Format(dateLayout), len(s.Chunks()))
		}
		ok, err := confirm(fmt.Sprintf("Execute all %d seasons?", len(p.Seasons)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	result, err := plan.NewRunner(engine, rt.logger).Run(ctx, p)
	printResult(result)
	return err
}

func printResult(r *retrieval.Result) {
	if r == nil {
		return
	}

	fmt.Println()
	fmt.Printf("Chunks: %d completed (%d empty), %d failed, %d skipped\n",
		r.CompletedChunks, r.EmptyChunks, r.FailedChunks, r.SkippedChunks)

	unique := len(r.DedupedByPitID())
	if unique != len(r.Pits) {
		fmt.Printf("Pits:   %d (%d unique)\n", len(r.Pits), unique)
	} else {
		fmt.Printf("Pits:   %d\n", len(r.Pits))
	}

	if len(r.FileFailures) > 0 {
		fmt.Printf("Files that failed to parse: %d\n", len(r.FileFailures))
		for _, f := range r.FileFailures {
			fmt.Printf("  %s: %v\n", f.Path, f.Err)
		}
	}
	if r.SkippedTests > 0 {
		fmt.Printf("Stability tests skipped as unreadable: %d\n", r.SkippedTests)
	}
}

func confirm(prompt string) (bool, error) {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
