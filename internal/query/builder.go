package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// QueryPath is the CAAML search endpoint, relative to the site base URL.
const QueryPath = "/avscience-query-caaml.xml"

// Build renders the filter into the endpoint's query string.
//
// Two server quirks are compensated here and nowhere else:
//
//   - Parameter order is the form's posting order and every field appears
//     even when empty, because the Drupal handler reads positionally-adjacent
//     fields and misbehaves on omissions. url.Values can't render this (it
//     sorts keys), so pairs are written by hand.
//
//   - The server treats OBS_DATE_MAX as exclusive. Build always sends the
//     day after the filter's inclusive end date, so a single-day filter
//     (DateMin == DateMax) still returns that day's pits. The filter itself
//     is never mutated; building twice renders the same string.
func Build(f Filter) string {
	var b strings.Builder

	writePair(&b, "PIT_NAME", f.PitName)
	if len(f.States) == 0 {
		writePair(&b, "STATE", "")
	}
	for _, s := range f.States {
		writePair(&b, "STATE", s)
	}
	writePair(&b, "OBS_DATE_MIN", formatDate(f.DateMin))
	writePair(&b, "OBS_DATE_MAX", formatDate(exclusiveEnd(f.DateMax)))
	writePair(&b, "recent_dates", "0")
	writePair(&b, "USERNAME", f.Username)
	writePair(&b, "AFFIL", f.Affiliation)
	writePair(&b, "per_page", strconv.Itoa(f.PerPage))
	writePair(&b, "ADV_WHERE_QUERY", "")
	writePair(&b, "submit", "Get Pits")

	return b.String()
}

func writePair(b *strings.Builder, key, value string) {
	if b.Len() > 0 {
		b.WriteByte('&')
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
}

func exclusiveEnd(d time.Time) time.Time {
	if d.IsZero() {
		return d
	}
	return d.AddDate(0, 0, 1)
}

func formatDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}
