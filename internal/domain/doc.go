// Package domain models snow pit observations exported by snowpilot.org in
// the CAAML (Canadian Avalanche Association Markup Language) dialect.
//
// # Data Source
//
// A snow pit is one field observation session: an observer digs to (or
// toward) the ground, records the stratigraphy of the exposed wall layer by
// layer, measures temperatures and densities at depth, and performs
// standardized stability tests. SnowPilot serializes each pit as one CAAML
// XML document; this package is the typed in-memory form those documents
// map onto.
//
// # Measurement Conventions
//
// Every measured magnitude carries the unit-of-measure string exactly as the
// source document reported it:
//
//	<depthTop uom="cm">66</depthTop>  →  Quantity{Value: 66, UOM: "cm"}
//
// No unit conversion happens anywhere in the model. A nil *Quantity means
// "not reported", which is never collapsed into zero: a pit with no recorded
// slope angle is different from a pit on flat ground.
//
// Depths run from the snow surface or from the ground depending on the
// profile's measurement direction ("top down" or "bottom up"). Layers stay
// in document order, which is physical order for the direction in use; the
// model never re-sorts them.
//
// # Grain Classification
//
// Grain forms use the IACS seasonal-snow classification: a two-letter basic
// class optionally followed by a lowercase modifier suffix.
//
//	"RG"    rounded grains
//	"RGxr"  rounded grains, rounding of faceted particles
//	"SHxr"  surface hoar, rounding
//	"FCxr"  faceted crystals, rounding
//
// BasicClass and SubClass are derived from the form code on demand, so they
// can never drift from it. See [Grain.BasicClass].
//
// # Stability Tests
//
// Seven test kinds are modeled, each with its own record type because each
// carries different fields:
//
//	ECT  extended column test    score e.g. "ECTN4", "ECTP12", "ECTX"
//	CT   compression test        score plus shear quality (Q1-Q3)
//	RBT  rutschblock test        score "RB1"-"RB7" plus release type
//	PST  propagation saw test    fracture propagation, cut/column lengths
//	SBT  stuff block test
//	SST  shovel shear test
//	DTT  deep tap test
//
// ECT scores encode two derived facts: whether the fracture propagated
// across the full column ("ECTP" prefix) and the tap count at failure (the
// numeric suffix). Both are derived from the score on demand, see
// [ExtendedColumnTest.Propagation] and [ExtendedColumnTest.NumTaps].
//
// # Whumpf Extension
//
// "Whumpf" is the field term for an audible snowpack collapse under the
// observer. SnowPilot records whumpf observations in a proprietary
// customData block outside the base CAAML schema; [WhumpfObservation]
// carries those fields.
package domain
