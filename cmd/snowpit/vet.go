package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/snowpit-etl-service/internal/archive"
	"github.com/couchcryptid/snowpit-etl-service/internal/caaml"
)

var vetCmd = &cobra.Command{
	Use:   "vet <path>...",
	Short: "Check that CAAML documents parse",
	Long: `Vet parses every CAAML document under the given files or directories and
reports PASS or FAIL per document, with the parse error for failures and a
note for stability tests that had to be skipped as unreadable.

Exits non-zero when any document fails.

Examples:
  snowpit vet snowpits/
  snowpit vet snowpits/saddle-peak-73109-caaml.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVet,
}

func init() {
	rootCmd.AddCommand(vetCmd)
}

func runVet(_ *cobra.Command, args []string) error {
	files, err := collectCAAMLFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no CAAML documents under %v", args)
	}

	var failed, skippedTests int
	for _, path := range files {
		_, diag, err := caaml.ParseFile(path)
		skippedTests += diag.SkippedTests

		switch {
		case err != nil:
			failed++
			fmt.Printf("  %-60s \033[31mFAIL\033[0m  %v\n", path, err)
		case diag.SkippedTests > 0:
			fmt.Printf("  %-60s \033[32mPASS\033[0m  (%d stability tests skipped)\n", path, diag.SkippedTests)
		default:
			fmt.Printf("  %-60s \033[32mPASS\033[0m\n", path)
		}
	}

	fmt.Println()
	fmt.Printf("%d documents: %d passed, %d failed", len(files), len(files)-failed, failed)
	if skippedTests > 0 {
		fmt.Printf(", %d stability tests skipped", skippedTests)
	}
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(files))
	}
	return nil
}

// collectCAAMLFiles resolves file and directory arguments into the CAAML
// documents they contain. Explicit file arguments are taken as given;
// directories are walked for *caaml.xml names.
func collectCAAMLFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && archive.IsCAAMLName(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
