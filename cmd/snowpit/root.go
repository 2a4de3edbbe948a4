package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/snowpit-etl-service/internal/config"
	"github.com/couchcryptid/snowpit-etl-service/internal/observability"
	"github.com/couchcryptid/snowpit-etl-service/internal/query"
)

const dateLayout = "2006-01-02"

var rootCmd = &cobra.Command{
	Use:   "snowpit",
	Short: "SnowPilot snow pit retrieval and inspection",
	Long: `snowpit harvests avalanche snow pit observations from snowpilot.org
and works with the CAAML documents it downloads.

Network commands (download, estimate) authenticate with the
SNOWPILOT_USER / SNOWPILOT_PASSWORD environment variables. Local
commands (status, vet, export, search) never touch the network.`,
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime bundles the pieces every command builds first: validated
// configuration, the process logger, and the metrics registry.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
	}, nil
}

// filterFlags is the query filter flag set shared by download and
// estimate. Each command registers its own instance.
type filterFlags struct {
	from        string
	to          string
	states      []string
	pitName     string
	username    string
	affiliation string
	perPage     int
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.from, "from", "", "start date YYYY-MM-DD (default: 7 days before --to)")
	cmd.Flags().StringVar(&ff.to, "to", "", "end date YYYY-MM-DD, inclusive (default: today)")
	cmd.Flags().StringSliceVar(&ff.states, "states", nil, "state codes to filter by, e.g. MT,CO")
	cmd.Flags().StringVar(&ff.pitName, "pit-name", "", "substring match on pit names")
	cmd.Flags().StringVar(&ff.username, "username", "", "submitting user")
	cmd.Flags().StringVar(&ff.affiliation, "affiliation", "", "submitting organization")
	cmd.Flags().IntVar(&ff.perPage, "per-page", 0, "results per query page (default: remote maximum)")
}

func (ff *filterFlags) filter() (query.Filter, error) {
	f := query.Filter{
		PitName:     ff.pitName,
		States:      ff.states,
		Username:    ff.username,
		Affiliation: ff.affiliation,
		PerPage:     ff.perPage,
	}

	var err error
	if f.DateMin, err = parseDateFlag("from", ff.from); err != nil {
		return query.Filter{}, err
	}
	if f.DateMax, err = parseDateFlag("to", ff.to); err != nil {
		return query.Filter{}, err
	}
	return f, nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, &flagError{flag: name, value: value}
	}
	return t, nil
}

type flagError struct {
	flag  string
	value string
}

func (e *flagError) Error() string {
	return "--" + e.flag + ": " + e.value + " is not a YYYY-MM-DD date"
}
