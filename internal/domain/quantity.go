package domain

import "fmt"

// Quantity is a measured value paired with the unit-of-measure string from
// the source document. Units are carried verbatim, never converted. A nil
// *Quantity field means the source did not report the measurement, which is
// distinct from a reported zero.
type Quantity struct {
	Value float64 `json:"value"`
	UOM   string  `json:"uom,omitempty"`
}

// NewQuantity returns a reported measurement.
func NewQuantity(value float64, uom string) *Quantity {
	return &Quantity{Value: value, UOM: uom}
}

// String renders "66 cm" style output for logs and CLI display. A nil
// receiver renders as "unreported".
func (q *Quantity) String() string {
	if q == nil {
		return "unreported"
	}
	if q.UOM == "" {
		return fmt.Sprintf("%g", q.Value)
	}
	return fmt.Sprintf("%g %s", q.Value, q.UOM)
}
