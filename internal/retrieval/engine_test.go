package retrieval

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snowpit-etl-service/internal/adapter/snowpilot"
	"github.com/couchcryptid/snowpit-etl-service/internal/checkpoint"
	"github.com/couchcryptid/snowpit-etl-service/internal/observability"
	"github.com/couchcryptid/snowpit-etl-service/internal/query"
)

type mockDownloader struct {
	downloadFn func(queryString string) (*snowpilot.Download, error)
	estimateFn func(queryString string) (int, error)
	calls      []string
}

func (m *mockDownloader) Download(_ context.Context, queryString string) (*snowpilot.Download, error) {
	m.calls = append(m.calls, queryString)
	if m.downloadFn == nil {
		return nil, nil
	}
	return m.downloadFn(queryString)
}

func (m *mockDownloader) EstimatePitCount(_ context.Context, queryString string) (int, error) {
	if m.estimateFn == nil {
		return 0, nil
	}
	return m.estimateFn(queryString)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, d Downloader, store *checkpoint.Store, cfg Config) *Engine {
	t.Helper()

	if cfg.DestDir == "" {
		cfg.DestDir = t.TempDir()
	}
	clk := clockwork.NewFakeClockAt(time.Date(2025, 2, 26, 8, 0, 0, 0, time.UTC))
	return New(d, store, cfg, discardLogger(), observability.NewMetricsForTesting(), clk)
}

// pitDoc is a minimal parseable CAAML document; the parser only requires
// the locRef anchor.
func pitDoc(pitID, name, day string) string {
	return fmt.Sprintf(`<SnowProfile>
  <timeRef><recordTime><TimeInstant><timePosition>%sT00:00:00-07:00</timePosition></TimeInstant></recordTime></timeRef>
  <locRef id="SnowPilot-%s"><name>%s</name></locRef>
</SnowProfile>`, day, pitID, name)
}

type archiveMember struct {
	name string
	body string
}

func testDownload(t *testing.T, filename string, members []archiveMember) *snowpilot.Download {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, m := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     m.name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(m.body)),
		}))
		_, err := tw.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return &snowpilot.Download{Filename: filename, Data: buf.Bytes()}
}

// queryDates pulls the rendered date window out of a query string.
func queryDates(t *testing.T, queryString string) (time.Time, time.Time) {
	t.Helper()

	values, err := url.ParseQuery(queryString)
	require.NoError(t, err)
	minDate, err := time.Parse("2006-01-02", values.Get("OBS_DATE_MIN"))
	require.NoError(t, err)
	maxDate, err := time.Parse("2006-01-02", values.Get("OBS_DATE_MAX"))
	require.NoError(t, err)
	return minDate, maxDate
}

func weekFilter() query.Filter {
	return query.Filter{
		DateMin: date(2023, 1, 1),
		DateMax: date(2023, 1, 7),
		States:  []string{"MT"},
	}
}

func TestEngineRun_SingleChunk(t *testing.T) {
	mock := &mockDownloader{
		downloadFn: func(string) (*snowpilot.Download, error) {
			return testDownload(t, "mt-pits-caaml.tar.gz", []archiveMember{
				{name: "saddle-peak-100-caaml.xml", body: pitDoc("100", "saddle peak", "2023-01-02")},
				{name: "hyalite-101-caaml.xml", body: pitDoc("101", "hyalite", "2023-01-03")},
			}), nil
		},
	}
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"), nil)
	destDir := t.TempDir()
	eng := newTestEngine(t, mock, store, Config{DestDir: destDir, ChunkDays: 7})

	result, err := eng.Run(context.Background(), weekFilter())
	require.NoError(t, err)

	require.Len(t, result.Pits, 2)
	assert.Equal(t, "100", result.Pits[0].CoreInfo.PitID)
	assert.Equal(t, "101", result.Pits[1].CoreInfo.PitID)
	assert.Equal(t, 1, result.CompletedChunks)
	assert.Zero(t, result.FailedChunks)
	assert.Empty(t, result.FileFailures)
	assert.FileExists(t, filepath.Join(destDir, "saddle-peak-100-caaml.xml"))
	assert.NoFileExists(t, filepath.Join(destDir, "mt-pits-caaml.tar.gz"),
		"archive should be deleted after extraction")

	progress, err := store.Load()
	require.NoError(t, err)
	assert.True(t, progress.IsCompleted("2023-01-01_2023-01-07"))
	assert.Equal(t, 2, progress.TotalPits)
}

func TestEngineRun_IsolatesFileFailures(t *testing.T) {
	mock := &mockDownloader{
		downloadFn: func(string) (*snowpilot.Download, error) {
			return testDownload(t, "mixed-caaml.tar.gz", []archiveMember{
				{name: "good-100-caaml.xml", body: pitDoc("100", "good", "2023-01-02")},
				{name: "broken-101-caaml.xml", body: "<SnowProfile><metaData/></SnowProfile>"},
				{name: "also-good-102-caaml.xml", body: pitDoc("102", "also good", "2023-01-04")},
			}), nil
		},
	}
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"), nil)
	eng := newTestEngine(t, mock, store, Config{ChunkDays: 7})

	result, err := eng.Run(context.Background(), weekFilter())
	require.NoError(t, err)

	assert.Len(t, result.Pits, 2)
	assert.Equal(t, 1, result.CompletedChunks)
	require.Len(t, result.FileFailures, 1)
	assert.Contains(t, result.FileFailures[0].Path, "broken-101-caaml.xml")

	progress, err := store.Load()
	require.NoError(t, err)
	assert.True(t, progress.IsCompleted("2023-01-01_2023-01-07"),
		"a bad document must not fail the chunk")
	assert.Equal(t, checkpoint.ChunkSummary{Pits: 2, FileFailures: 1},
		progress.ChunkResults["2023-01-01_2023-01-07"])
}

func TestEngineRun_ResumeSkipsCompletedChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	destDir := t.TempDir()

	first := &mockDownloader{
		downloadFn: func(string) (*snowpilot.Download, error) {
			return testDownload(t, "first-caaml.tar.gz", []archiveMember{
				{name: "pit-100-caaml.xml", body: pitDoc("100", "pit", "2023-01-02")},
			}), nil
		},
	}
	eng := newTestEngine(t, first, checkpoint.NewStore(path, nil), Config{DestDir: destDir, ChunkDays: 7})
	_, err := eng.Run(context.Background(), weekFilter())
	require.NoError(t, err)
	require.Len(t, first.calls, 1)

	second := &mockDownloader{}
	eng = newTestEngine(t, second, checkpoint.NewStore(path, nil), Config{DestDir: destDir, ChunkDays: 7})
	result, err := eng.Run(context.Background(), weekFilter())
	require.NoError(t, err)

	assert.Empty(t, second.calls, "resumed run must perform zero network requests")
	assert.Equal(t, 1, result.SkippedChunks)
	assert.Zero(t, result.CompletedChunks)
	assert.Empty(t, result.Pits)
}

func TestEngineRun_EmptyChunk(t *testing.T) {
	mock := &mockDownloader{} // nil download, nil error: legitimate empty
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"), nil)
	eng := newTestEngine(t, mock, store, Config{ChunkDays: 7})

	result, err := eng.Run(context.Background(), weekFilter())
	require.NoError(t, err)

	assert.Empty(t, result.Pits)
	assert.Equal(t, 1, result.CompletedChunks)
	assert.Equal(t, 1, result.EmptyChunks)

	progress, err := store.Load()
	require.NoError(t, err)
	assert.True(t, progress.IsCompleted("2023-01-01_2023-01-07"),
		"an empty result is a normal terminal state, not a failure")
}

func TestEngineRun_FailedChunkRecorded(t *testing.T) {
	mock := &mockDownloader{
		downloadFn: func(string) (*snowpilot.Download, error) {
			return nil, errors.New("retries exhausted")
		},
	}
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"), nil)
	eng := newTestEngine(t, mock, store, Config{ChunkDays: 7})

	result, err := eng.Run(context.Background(), weekFilter())
	require.NoError(t, err, "a failed chunk must not abort the run")

	assert.Equal(t, 1, result.FailedChunks)
	assert.Zero(t, result.CompletedChunks)

	progress, err := store.Load()
	require.NoError(t, err)
	assert.False(t, progress.IsCompleted("2023-01-01_2023-01-07"))
	require.Len(t, progress.FailedChunks, 1)
	assert.Equal(t, "2023-01-01_2023-01-07", progress.FailedChunks[0].ChunkID)
	assert.Contains(t, progress.FailedChunks[0].Error, "retries exhausted")
}

func TestEngineRun_DayFallback(t *testing.T) {
	mock := &mockDownloader{}
	mock.downloadFn = func(queryString string) (*snowpilot.Download, error) {
		minDate, maxDate := queryDates(t, queryString)
		if maxDate.Sub(minDate) > 24*time.Hour {
			return nil, errors.New("server choked on the range")
		}
		day := minDate.Format("2006-01-02")
		id := minDate.Format("0102")
		return testDownload(t, day+"-caaml.tar.gz", []archiveMember{
			{name: "pit-" + id + "-caaml.xml", body: pitDoc(id, "pit", day)},
		}), nil
	}
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"), nil)
	eng := newTestEngine(t, mock, store, Config{ChunkDays: 3, DayFallback: true})

	f := weekFilter()
	f.DateMax = date(2023, 1, 3)
	result, err := eng.Run(context.Background(), f)
	require.NoError(t, err)

	assert.Len(t, result.Pits, 3, "each day of the failed range should contribute its pit")
	assert.Equal(t, 1, result.CompletedChunks)
	require.Len(t, mock.calls, 4, "one range query plus one per day")

	progress, err := store.Load()
	require.NoError(t, err)
	assert.True(t, progress.IsCompleted("2023-01-01_2023-01-03"))
}

func TestEngineRun_DayFallbackStillFailing(t *testing.T) {
	mock := &mockDownloader{
		downloadFn: func(string) (*snowpilot.Download, error) {
			return nil, errors.New("service down")
		},
	}
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"), nil)
	eng := newTestEngine(t, mock, store, Config{ChunkDays: 3, DayFallback: true})

	f := weekFilter()
	f.DateMax = date(2023, 1, 3)
	result, err := eng.Run(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedChunks)
	assert.Len(t, mock.calls, 4)

	progress, err := store.Load()
	require.NoError(t, err)
	require.Len(t, progress.FailedChunks, 1)
	assert.Equal(t, "2023-01-01_2023-01-03", progress.FailedChunks[0].ChunkID)
}

func TestEngineRun_PaginationOverflow(t *testing.T) {
	firstPage := []archiveMember{
		{name: "pit-100-caaml.xml", body: pitDoc("100", "pit", "2023-01-02")},
		{name: "pit-101-caaml.xml", body: pitDoc("101", "pit", "2023-01-03")},
	}
	widePage := append(firstPage, archiveMember{
		name: "pit-102-caaml.xml", body: pitDoc("102", "pit", "2023-01-04"),
	})

	mock := &mockDownloader{}
	mock.downloadFn = func(queryString string) (*snowpilot.Download, error) {
		values, err := url.ParseQuery(queryString)
		require.NoError(t, err)
		if values.Get("per_page") == "100" {
			return testDownload(t, "wide-caaml.tar.gz", widePage), nil
		}
		return testDownload(t, "narrow-caaml.tar.gz", firstPage), nil
	}
	eng := newTestEngine(t, mock, nil, Config{ChunkDays: 7})

	f := weekFilter()
	f.PerPage = 2
	result, err := eng.Run(context.Background(), f)
	require.NoError(t, err)

	require.Len(t, mock.calls, 2, "a full page triggers exactly one re-query")
	assert.Len(t, result.Pits, 3)
	ids := []string{result.Pits[0].CoreInfo.PitID, result.Pits[1].CoreInfo.PitID, result.Pits[2].CoreInfo.PitID}
	assert.Equal(t, []string{"100", "101", "102"}, ids)
}

func TestEngineRun_NoOverflowForSingleDayChunks(t *testing.T) {
	mock := &mockDownloader{
		downloadFn: func(string) (*snowpilot.Download, error) {
			return testDownload(t, "day-caaml.tar.gz", []archiveMember{
				{name: "pit-100-caaml.xml", body: pitDoc("100", "pit", "2023-01-05")},
				{name: "pit-101-caaml.xml", body: pitDoc("101", "pit", "2023-01-05")},
			}), nil
		},
	}
	eng := newTestEngine(t, mock, nil, Config{ChunkDays: 7})

	f := query.Filter{DateMin: date(2023, 1, 5), DateMax: date(2023, 1, 5), PerPage: 2}
	result, err := eng.Run(context.Background(), f)
	require.NoError(t, err)

	assert.Len(t, mock.calls, 1, "single-day chunks cannot be subdivided, no re-query")
	assert.Len(t, result.Pits, 2)
}

func TestEngineRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newTestEngine(t, &mockDownloader{}, nil, Config{ChunkDays: 7})
	result, err := eng.Run(ctx, weekFilter())

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Pits)
}

func TestEngineRun_InvalidFilter(t *testing.T) {
	eng := newTestEngine(t, &mockDownloader{}, nil, Config{})

	f := weekFilter()
	f.States = []string{"TX"}
	_, err := eng.Run(context.Background(), f)

	var regionErr *query.UnsupportedRegionError
	assert.ErrorAs(t, err, &regionErr)
}

func TestEngineEstimate(t *testing.T) {
	mock := &mockDownloader{
		estimateFn: func(string) (int, error) { return 42, nil },
	}
	eng := newTestEngine(t, mock, nil, Config{ChunkDays: 7})

	f := query.Filter{DateMin: date(2023, 1, 1), DateMax: date(2023, 1, 21), States: []string{"MT"}}
	est, err := eng.Estimate(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, 42, est.PitCount)
	require.Len(t, est.Chunks, 3)
	assert.Equal(t, "2023-01-01_2023-01-07", est.Chunks[0].ID())
}

func TestEngineCheckReadiness(t *testing.T) {
	mock := &mockDownloader{}
	eng := newTestEngine(t, mock, nil, Config{ChunkDays: 7})

	require.Error(t, eng.CheckReadiness(context.Background()))

	_, err := eng.Run(context.Background(), weekFilter())
	require.NoError(t, err)
	assert.NoError(t, eng.CheckReadiness(context.Background()))
}

func TestResultDedupedByPitID(t *testing.T) {
	mock := &mockDownloader{}
	mock.downloadFn = func(queryString string) (*snowpilot.Download, error) {
		minDate, _ := queryDates(t, queryString)
		day := minDate.Format("2006-01-02")
		// The same pit shows up in both chunks, as happens when a pit is
		// edited and re-exported between chunk downloads.
		return testDownload(t, day+"-caaml.tar.gz", []archiveMember{
			{name: "dup-500-caaml.xml", body: pitDoc("500", "dup", day)},
			{name: "uniq-" + minDate.Format("0102") + "-caaml.xml", body: pitDoc(minDate.Format("0102"), "uniq", day)},
		}), nil
	}
	eng := newTestEngine(t, mock, nil, Config{ChunkDays: 7})

	f := weekFilter()
	f.DateMax = date(2023, 1, 14)
	result, err := eng.Run(context.Background(), f)
	require.NoError(t, err)

	assert.Len(t, result.Pits, 4, "the run itself never deduplicates")

	deduped := result.DedupedByPitID()
	require.Len(t, deduped, 3)
	assert.Equal(t, "500", deduped[0].CoreInfo.PitID)
	assert.Same(t, result.Pits[0], deduped[0], "first occurrence wins")
}
