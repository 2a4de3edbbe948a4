package query

import "sort"

// supportedRegions are the US state codes the avscience query endpoint
// accepts in its STATE parameter. Requests for anything else return the
// full unfiltered archive, so they are rejected up front instead.
var supportedRegions = map[string]bool{
	"AK": true,
	"CA": true,
	"CO": true,
	"ID": true,
	"ME": true,
	"MT": true,
	"NH": true,
	"NY": true,
	"OR": true,
	"UT": true,
	"VT": true,
	"WA": true,
	"WY": true,
}

// IsSupportedRegion reports whether the endpoint can filter by the given
// state code.
func IsSupportedRegion(code string) bool {
	return supportedRegions[code]
}

// SupportedRegions returns the accepted state codes in sorted order, for
// error messages and CLI help text.
func SupportedRegions() []string {
	codes := make([]string, 0, len(supportedRegions))
	for code := range supportedRegions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
