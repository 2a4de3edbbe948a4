package domain

// SnowProfile is the stratigraphy side of a pit: the layer sequence plus the
// temperature and density measurements taken down the pit wall.
type SnowProfile struct {
	// MeasurementDirection is "top down" or "bottom up" and fixes which end
	// of the pit depth zero refers to.
	MeasurementDirection string `json:"measurement_direction,omitempty"`

	// ProfileDepth is how far down the observer dug; TotalSnowHeight (hS)
	// is the full height of the snowpack. They differ when the pit stops
	// short of the ground.
	ProfileDepth    *Quantity `json:"profile_depth,omitempty"`
	TotalSnowHeight *Quantity `json:"hs,omitempty"`

	Surface *SurfaceCondition `json:"surface,omitempty"`

	// Layers is the stratigraphy in document order. The slice is never
	// re-sorted; index i is the (i+1)th layer the observer recorded.
	Layers []*Layer `json:"layers,omitempty"`

	Temperatures []*TemperatureObservation `json:"temperatures,omitempty"`
	Densities    []*DensityObservation     `json:"densities,omitempty"`
}

// LayerOfConcern returns the flagged failure layer, or nil when no layer is
// flagged. SnowPilot's editor only permits one flag, but documents with
// several flagged layers do occur; the last one in document order wins.
// LayersOfConcern returns all of them.
func (p *SnowProfile) LayerOfConcern() *Layer {
	var last *Layer
	for _, l := range p.Layers {
		if l.LayerOfConcern {
			last = l
		}
	}
	return last
}

// LayersOfConcern returns every flagged layer in document order. The
// returned elements alias p.Layers.
func (p *SnowProfile) LayersOfConcern() []*Layer {
	var flagged []*Layer
	for _, l := range p.Layers {
		if l.LayerOfConcern {
			flagged = append(flagged, l)
		}
	}
	return flagged
}

// Layer is one stratigraphic band of the pit wall.
type Layer struct {
	DepthTop  *Quantity `json:"depth_top,omitempty"`
	Thickness *Quantity `json:"thickness,omitempty"`

	// Hardness is the hand hardness code (F, 4F, 1F, P, K, I, with +/-
	// modifiers). HardnessTop and HardnessBottom appear when the observer
	// recorded a gradient across the layer instead of a single value.
	Hardness       string `json:"hardness,omitempty"`
	HardnessTop    string `json:"hardness_top,omitempty"`
	HardnessBottom string `json:"hardness_bottom,omitempty"`

	GrainPrimary   *Grain `json:"grain_primary,omitempty"`
	GrainSecondary *Grain `json:"grain_secondary,omitempty"`

	Density *Quantity `json:"density,omitempty"`
	Wetness string    `json:"wetness,omitempty"`

	// LayerOfConcern marks the layer the observer flagged as the likely
	// failure plane.
	LayerOfConcern bool `json:"layer_of_concern,omitempty"`

	Comment string `json:"comment,omitempty"`
}

// TemperatureObservation is one point of the snow temperature profile.
type TemperatureObservation struct {
	Depth    *Quantity `json:"depth,omitempty"`
	SnowTemp *Quantity `json:"snow_temp,omitempty"`
}

// DensityObservation is one band of the density profile, sampled with a
// cutter of the observer's choice; depth and thickness locate the band.
type DensityObservation struct {
	DepthTop  *Quantity `json:"depth_top,omitempty"`
	Thickness *Quantity `json:"thickness,omitempty"`
	Density   *Quantity `json:"density,omitempty"`
}

// SurfaceCondition describes the snow surface: wind effect and how far a
// boot or ski sinks in.
type SurfaceCondition struct {
	WindLoading     string    `json:"wind_loading,omitempty"`
	PenetrationFoot *Quantity `json:"penetration_foot,omitempty"`
	PenetrationSki  *Quantity `json:"penetration_ski,omitempty"`
}
