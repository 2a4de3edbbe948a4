// Package query builds search filters for the snowpilot.org avscience
// endpoint and renders them into its query string grammar.
//
// The endpoint is an old Drupal form, not an API: every form field must be
// present on every request (empty when unused), parameters must appear in
// the order the form posts them, and the OBS_DATE_MAX it receives is
// treated as exclusive. [Build] owns those quirks so nothing else has to
// know them.
package query

import (
	"fmt"
	"strings"
	"time"
)

// MaxPerPage is the largest page size the endpoint honors. Larger values
// are silently treated as this on the server, so requesting them is a
// filter error here.
const MaxPerPage = 100

// UnsupportedRegionError reports a state code outside the set the endpoint
// can filter by.
type UnsupportedRegionError struct {
	Region string
}

func (e *UnsupportedRegionError) Error() string {
	return fmt.Sprintf("unsupported region %q, expect one of %s",
		e.Region, strings.Join(SupportedRegions(), " "))
}

// Filter describes one archive search. The zero value means "everything
// from the default trailing window"; call Normalized before building to
// fill the defaults in.
type Filter struct {
	// PitName matches pit names by substring, server-side.
	PitName string

	// States restricts results to the given state codes. The endpoint
	// accepts the parameter repeated once per state.
	States []string

	// DateMin and DateMax bound the observation date, both inclusive.
	// Only the date part is used.
	DateMin time.Time
	DateMax time.Time

	Username    string
	Affiliation string

	// PerPage caps the result count per request; zero means MaxPerPage.
	PerPage int
}

// Validate rejects filters the endpoint would misinterpret rather than
// refuse.
func (f Filter) Validate() error {
	for _, s := range f.States {
		if !IsSupportedRegion(s) {
			return &UnsupportedRegionError{Region: s}
		}
	}
	if !f.DateMin.IsZero() && !f.DateMax.IsZero() && f.DateMin.After(f.DateMax) {
		return fmt.Errorf("date range starts %s after it ends %s",
			f.DateMin.Format(dateLayout), f.DateMax.Format(dateLayout))
	}
	if f.PerPage < 0 || f.PerPage > MaxPerPage {
		return fmt.Errorf("per-page %d out of range 1-%d", f.PerPage, MaxPerPage)
	}
	return nil
}

// Normalized fills defaults: a missing end date becomes today, a missing
// start date becomes seven days before the end date, and a zero page size
// becomes MaxPerPage. The receiver is not modified.
func (f Filter) Normalized() Filter {
	if f.PerPage == 0 {
		f.PerPage = MaxPerPage
	}
	if f.DateMax.IsZero() {
		f.DateMax = clock.Now().UTC()
	}
	if f.DateMin.IsZero() {
		f.DateMin = f.DateMax.AddDate(0, 0, -7)
	}
	return f
}
