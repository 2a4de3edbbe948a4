package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/snowpit-etl-service/internal/catalog"
)

type searchOptions struct {
	dir      string
	region   string
	from     string
	to       string
	username string
	name     string
}

var searchFlags searchOptions

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search downloaded pits locally",
	Long: `Search walks the pit directory and matches already-downloaded documents
against the given filters, without touching the network. Repeat searches
reuse a parse cache, so large archives stay fast.

Examples:
  snowpit search --region MT
  snowpit search --name "saddle" --from 2023-01-01 --to 2023-03-31
  snowpit search --username frosty --dir harvests/winter-2023`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchFlags.dir, "dir", "", "directory of CAAML documents (default $SNOWPIT_DIR)")
	searchCmd.Flags().StringVar(&searchFlags.region, "region", "", "state/region code")
	searchCmd.Flags().StringVar(&searchFlags.from, "from", "", "earliest observation date YYYY-MM-DD")
	searchCmd.Flags().StringVar(&searchFlags.to, "to", "", "latest observation date YYYY-MM-DD")
	searchCmd.Flags().StringVar(&searchFlags.username, "username", "", "submitting user")
	searchCmd.Flags().StringVar(&searchFlags.name, "name", "", "substring match on pit names")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	dir := searchFlags.dir
	if dir == "" {
		dir = rt.cfg.PitsDir
	}

	f := catalog.SearchFilter{
		Region:   searchFlags.region,
		Username: searchFlags.username,
		PitName:  searchFlags.name,
	}
	if f.DateFrom, err = parseDateFlag("from", searchFlags.from); err != nil {
		return err
	}
	if f.DateTo, err = parseDateFlag("to", searchFlags.to); err != nil {
		return err
	}

	c := catalog.New(dir, rt.cfg.CatalogCacheSize, rt.logger, rt.metrics)
	entries, err := c.Search(cmd.Context(), f)
	if err != nil {
		return err
	}

	for _, e := range entries {
		core := e.Pit.CoreInfo
		date := core.Date
		if date == "" {
			date = "----------"
		}
		fmt.Printf("%s  %-7s %-3s %-30s %s\n", date, core.PitID, core.Location.Region, core.PitName, e.Path)
	}
	fmt.Printf("%d pits matched.\n", len(entries))
	return nil
}
