package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/snowpit-etl-service/internal/caaml"
	"github.com/couchcryptid/snowpit-etl-service/internal/domain"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <path>...",
	Short: "Export parsed pits as JSON",
	Long: `Export parses every CAAML document under the given files or directories
and writes the pits as one JSON array, for downstream analysis. The array
goes to stdout unless --out names a file; summary statistics go to stderr
either way. Documents that fail to parse are reported and skipped.

Examples:
  snowpit export snowpits/ > pits.json
  snowpit export snowpits/2023/ --out winter-2023.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write the JSON array to this file instead of stdout")
}

func runExport(_ *cobra.Command, args []string) error {
	files, err := collectCAAMLFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no CAAML documents under %v", args)
	}

	pits := make([]*domain.SnowPit, 0, len(files))
	var failed, layers, tests, skippedTests int
	var dateMin, dateMax string

	for _, path := range files {
		pit, diag, err := caaml.ParseFile(path)
		skippedTests += diag.SkippedTests
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			continue
		}

		pits = append(pits, pit)
		layers += len(pit.SnowProfile.Layers)
		tests += pit.StabilityTests.Total()
		if d := pit.CoreInfo.Date; d != "" {
			if dateMin == "" || d < dateMin {
				dateMin = d
			}
			if d > dateMax {
				dateMax = d
			}
		}
	}

	data, err := json.MarshalIndent(pits, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pits: %w", err)
	}
	data = append(data, '\n')

	if exportOut != "" {
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
	} else if _, err := os.Stdout.Write(data); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d pits exported (%d documents failed), %d layers, %d stability tests",
		len(pits), failed, layers, tests)
	if skippedTests > 0 {
		fmt.Fprintf(os.Stderr, ", %d tests skipped", skippedTests)
	}
	if dateMin != "" {
		fmt.Fprintf(os.Stderr, ", observations %s to %s", dateMin, dateMax)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}
