// Package plan loads multi-season harvest plans from YAML and executes
// them season by season against the retrieval engine. Seasons size their
// chunks to the month unless they override the chunk span outright.
package plan

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/snowpit-etl-service/internal/query"
	"github.com/couchcryptid/snowpit-etl-service/internal/retrieval"
)

const dateLayout = "2006-01-02"

// Plan is a validated harvest plan.
type Plan struct {
	Seasons []Season
}

// Season is one date range of a plan.
type Season struct {
	Name   string
	Start  time.Time
	End    time.Time
	States []string
	// ChunkDays overrides the month-adaptive chunk sizing when positive.
	ChunkDays int
}

// Filter returns the query filter covering the season.
func (s Season) Filter() query.Filter {
	return query.Filter{
		DateMin: s.Start,
		DateMax: s.End,
		States:  s.States,
	}
}

// Chunks returns the season's chunk breakdown: fixed-size when the season
// overrides chunk_days, month-adaptive otherwise.
func (s Season) Chunks() []retrieval.Chunk {
	if s.ChunkDays > 0 {
		return retrieval.GenerateChunks(s.Start, s.End, s.ChunkDays)
	}
	return AdaptiveChunks(s.Start, s.End)
}

// The on-disk YAML shape. Dates stay strings here and are parsed during
// validation so a bad plan fails with the season and field named.

type planDoc struct {
	Seasons []seasonDoc `yaml:"seasons"`
}

type seasonDoc struct {
	Name      string   `yaml:"name"`
	Start     string   `yaml:"start"`
	End       string   `yaml:"end"`
	States    []string `yaml:"states"`
	ChunkDays int      `yaml:"chunk_days"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var doc planDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(doc.Seasons) == 0 {
		return nil, errors.New("plan has no seasons")
	}

	p := &Plan{Seasons: make([]Season, 0, len(doc.Seasons))}
	for i, sd := range doc.Seasons {
		season, err := sd.compile(i)
		if err != nil {
			return nil, err
		}
		p.Seasons = append(p.Seasons, season)
	}
	return p, nil
}

func (sd seasonDoc) compile(index int) (Season, error) {
	name := sd.Name
	if name == "" {
		name = fmt.Sprintf("season-%d", index+1)
	}

	start, err := time.Parse(dateLayout, sd.Start)
	if err != nil {
		return Season{}, fmt.Errorf("season %s: invalid start date %q", name, sd.Start)
	}
	end, err := time.Parse(dateLayout, sd.End)
	if err != nil {
		return Season{}, fmt.Errorf("season %s: invalid end date %q", name, sd.End)
	}
	if end.Before(start) {
		return Season{}, fmt.Errorf("season %s: end date before start date", name)
	}
	if sd.ChunkDays < 0 {
		return Season{}, fmt.Errorf("season %s: negative chunk_days", name)
	}
	for _, state := range sd.States {
		if !query.IsSupportedRegion(state) {
			return Season{}, fmt.Errorf("season %s: %w", name, &query.UnsupportedRegionError{Region: state})
		}
	}

	return Season{
		Name:      name,
		Start:     start,
		End:       end,
		States:    sd.States,
		ChunkDays: sd.ChunkDays,
	}, nil
}
