package query

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterValidate(t *testing.T) {
	t.Run("accepts supported states", func(t *testing.T) {
		f := Filter{States: []string{"MT", "CO", "AK"}}
		assert.NoError(t, f.Validate())
	})

	t.Run("rejects unsupported region", func(t *testing.T) {
		f := Filter{States: []string{"MT", "TX"}}
		err := f.Validate()

		var unsupported *UnsupportedRegionError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "TX", unsupported.Region)
		assert.Contains(t, err.Error(), "MT")
	})

	t.Run("rejects reversed date range", func(t *testing.T) {
		f := Filter{
			DateMin: date(2023, time.February, 1),
			DateMax: date(2023, time.January, 1),
		}
		assert.Error(t, f.Validate())
	})

	t.Run("rejects oversized page", func(t *testing.T) {
		f := Filter{PerPage: MaxPerPage + 1}
		assert.Error(t, f.Validate())
	})

	t.Run("rejects negative page", func(t *testing.T) {
		f := Filter{PerPage: -1}
		assert.Error(t, f.Validate())
	})

	t.Run("zero filter is valid", func(t *testing.T) {
		assert.NoError(t, Filter{}.Validate())
	})
}

func TestFilterNormalized(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.November, 20, 8, 0, 0, 0, time.UTC)))
	defer SetClock(nil)

	t.Run("fills trailing window and page size", func(t *testing.T) {
		n := Filter{}.Normalized()

		assert.Equal(t, MaxPerPage, n.PerPage)
		assert.Equal(t, "2024-11-20", n.DateMax.Format(dateLayout))
		assert.Equal(t, "2024-11-13", n.DateMin.Format(dateLayout))
	})

	t.Run("start date defaults relative to explicit end", func(t *testing.T) {
		n := Filter{DateMax: date(2023, time.May, 10)}.Normalized()

		assert.Equal(t, "2023-05-10", n.DateMax.Format(dateLayout))
		assert.Equal(t, "2023-05-03", n.DateMin.Format(dateLayout))
	})

	t.Run("explicit values survive", func(t *testing.T) {
		f := Filter{
			DateMin: date(2023, time.January, 1),
			DateMax: date(2023, time.January, 31),
			PerPage: 25,
		}
		assert.Equal(t, f, f.Normalized())
	})
}

func TestSupportedRegions(t *testing.T) {
	codes := SupportedRegions()
	assert.Len(t, codes, 13)
	assert.IsIncreasing(t, codes)

	assert.True(t, IsSupportedRegion("MT"))
	assert.False(t, IsSupportedRegion("TX"))
	assert.False(t, IsSupportedRegion("mt"))
}
