package domain

// Grain is a grain-form observation for one layer, primary or secondary.
// Size statistics belong to the primary grain in SnowPilot documents even
// though the schema nests them beside the form elements.
type Grain struct {
	// Form is the IACS classification code, e.g. "RG" or "RGxr".
	Form string `json:"form,omitempty"`

	SizeAvg *Quantity `json:"size_avg,omitempty"`
	SizeMax *Quantity `json:"size_max,omitempty"`
}

// BasicClass returns the two-letter base class of the form code
// ("RGxr" → "RG"). Codes of two letters or fewer are returned unchanged.
func (g *Grain) BasicClass() string {
	if len(g.Form) <= 2 {
		return g.Form
	}
	return g.Form[:2]
}

// SubClass returns the full code when the form carries a modifier suffix
// ("RGxr"), and "" for plain two-letter forms.
func (g *Grain) SubClass() string {
	if len(g.Form) <= 2 {
		return ""
	}
	return g.Form
}
