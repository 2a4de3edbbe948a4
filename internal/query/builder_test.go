package query

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildRendersEveryFieldInFormOrder(t *testing.T) {
	f := Filter{
		States:  []string{"MT"},
		DateMin: date(2023, time.January, 5),
		DateMax: date(2023, time.January, 5),
		PerPage: 100,
	}

	// A single-day filter still queries a one-day window: the server end
	// date is exclusive, so the 5th renders as max the 6th.
	want := "PIT_NAME=&STATE=MT&OBS_DATE_MIN=2023-01-05&OBS_DATE_MAX=2023-01-06" +
		"&recent_dates=0&USERNAME=&AFFIL=&per_page=100&ADV_WHERE_QUERY=&submit=Get+Pits"
	assert.Equal(t, want, Build(f))
}

func TestBuildIsRepeatable(t *testing.T) {
	f := Filter{
		States:  []string{"CO"},
		DateMin: date(2024, time.December, 30),
		DateMax: date(2024, time.December, 31),
		PerPage: 50,
	}

	first := Build(f)
	second := Build(f)

	// The exclusive-end correction happens during rendering, never by
	// mutating the filter, so repeated builds cannot drift the window.
	assert.Equal(t, first, second)
	assert.Equal(t, date(2024, time.December, 31), f.DateMax)
	assert.Contains(t, first, "OBS_DATE_MAX=2025-01-01")
}

func TestBuildRepeatsStateParam(t *testing.T) {
	f := Filter{States: []string{"MT", "CO", "WY"}, PerPage: 100}

	got := Build(f)
	assert.Contains(t, got, "STATE=MT&STATE=CO&STATE=WY")
}

func TestBuildEmptyStatesStillRendersField(t *testing.T) {
	got := Build(Filter{PerPage: 100})
	assert.Contains(t, got, "PIT_NAME=&STATE=&OBS_DATE_MIN=")
}

func TestBuildEscapesValues(t *testing.T) {
	f := Filter{
		PitName:  "Lone Peak #3",
		Username: "kat b",
		PerPage:  100,
	}

	got := Build(f)
	assert.Contains(t, got, "PIT_NAME=Lone+Peak+%233")
	assert.Contains(t, got, "USERNAME=kat+b")
	assert.Contains(t, got, "submit=Get+Pits")
}

func TestBuildWithNormalizedDefaults(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2023, time.March, 15, 10, 30, 0, 0, time.UTC)))
	defer SetClock(nil)

	got := Build(Filter{}.Normalized())

	assert.Contains(t, got, "OBS_DATE_MIN=2023-03-08")
	assert.Contains(t, got, "OBS_DATE_MAX=2023-03-16")
	assert.Contains(t, got, "per_page=100")
}
