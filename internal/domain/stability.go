package domain

import "strings"

// StabilityTests groups every stability test recorded in a pit, one ordered
// list per test kind. Order within a list is document order.
type StabilityTests struct {
	ECT []*ExtendedColumnTest `json:"ect,omitempty"`
	CT  []*CompressionTest    `json:"ct,omitempty"`
	RBT []*RutschblockTest    `json:"rbt,omitempty"`
	PST []*PropagationSawTest `json:"pst,omitempty"`
	SBT []*StuffBlockTest     `json:"sbt,omitempty"`
	SST []*ShovelShearTest    `json:"sst,omitempty"`
	DTT []*DeepTapTest        `json:"dtt,omitempty"`
}

// Total counts tests across all kinds.
func (s *StabilityTests) Total() int {
	return len(s.ECT) + len(s.CT) + len(s.RBT) + len(s.PST) +
		len(s.SBT) + len(s.SST) + len(s.DTT)
}

// ExtendedColumnTest records an ECT result. The score string encodes the
// outcome: "ECTP<n>" propagated on tap n, "ECTN<n>" fractured without
// propagation, "ECTPV" propagated during isolation, "ECTX" no result.
type ExtendedColumnTest struct {
	DepthTop  *Quantity `json:"depth_top,omitempty"`
	TestScore string    `json:"test_score,omitempty"`
	Comment   string    `json:"comment,omitempty"`
}

// Propagation reports whether the fracture propagated across the full
// column, i.e. the score carries the "ECTP" prefix (including "ECTPV").
func (t *ExtendedColumnTest) Propagation() bool {
	return strings.HasPrefix(t.TestScore, "ECTP")
}

// NumTaps returns the tap count embedded in the score ("ECTN4" → "4"), or
// "" for scores with no numeric suffix such as "ECTX" and "ECTPV". The
// count stays a string because it is a label, not a measurement.
func (t *ExtendedColumnTest) NumTaps() string {
	for i, r := range t.TestScore {
		if r >= '0' && r <= '9' {
			return t.TestScore[i:]
		}
	}
	return ""
}

// CompressionTest records a CT result.
type CompressionTest struct {
	DepthTop  *Quantity `json:"depth_top,omitempty"`
	TestScore string    `json:"test_score,omitempty"`

	// ShearQuality is the fracture character code, Q1 (clean, sudden)
	// through Q3 (irregular).
	ShearQuality string `json:"shear_quality,omitempty"`

	Comment string `json:"comment,omitempty"`
}

// RutschblockTest records an RBT result: score "RB1"-"RB7" plus the release
// type (whole block vs. edge).
type RutschblockTest struct {
	DepthTop     *Quantity `json:"depth_top,omitempty"`
	TestScore    string    `json:"test_score,omitempty"`
	ReleaseType  string    `json:"release_type,omitempty"`
	ShearQuality string    `json:"shear_quality,omitempty"`
	Comment      string    `json:"comment,omitempty"`
}

// PropagationSawTest records a PST result. CutLength and ColumnLength stay
// verbatim strings ("13.0", "100.0") because they name the test geometry
// the way the observer wrote it; FractureProp is "End", "Arr", or "SF".
type PropagationSawTest struct {
	DepthTop     *Quantity `json:"depth_top,omitempty"`
	FractureProp string    `json:"fracture_prop,omitempty"`
	CutLength    string    `json:"cut_length,omitempty"`
	ColumnLength string    `json:"column_length,omitempty"`
	Comment      string    `json:"comment,omitempty"`
}

// StuffBlockTest records an SBT result.
type StuffBlockTest struct {
	DepthTop     *Quantity `json:"depth_top,omitempty"`
	TestScore    string    `json:"test_score,omitempty"`
	ShearQuality string    `json:"shear_quality,omitempty"`
	Comment      string    `json:"comment,omitempty"`
}

// ShovelShearTest records an SST result.
type ShovelShearTest struct {
	DepthTop  *Quantity `json:"depth_top,omitempty"`
	TestScore string    `json:"test_score,omitempty"`
	Comment   string    `json:"comment,omitempty"`
}

// DeepTapTest records a DTT result.
type DeepTapTest struct {
	DepthTop     *Quantity `json:"depth_top,omitempty"`
	TestScore    string    `json:"test_score,omitempty"`
	ShearQuality string    `json:"shear_quality,omitempty"`
	Comment      string    `json:"comment,omitempty"`
}
