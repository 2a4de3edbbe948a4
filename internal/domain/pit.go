package domain

// SnowPit is one complete observation session as recorded by a single CAAML
// document: identification and site metadata, the stratigraphy profile, the
// stability test results, and the optional whumpf extension block.
type SnowPit struct {
	CoreInfo       CoreInfo           `json:"core_info"`
	SnowProfile    SnowProfile        `json:"snow_profile"`
	StabilityTests StabilityTests     `json:"stability_tests"`
	Whumpf         *WhumpfObservation `json:"whumpf,omitempty"`
}

// CoreInfo identifies a pit: who dug it, where, and when.
type CoreInfo struct {
	// PitID is the trailing numeric segment of the document's location
	// gml:id ("SnowPilot-73109" → "73109"). It is the stable identifier
	// SnowPilot uses in filenames and URLs.
	PitID string `json:"pit_id"`

	PitName string `json:"pit_name,omitempty"`

	// Date is the observation date as "YYYY-MM-DD"; any time-of-day in the
	// source timestamp is discarded.
	Date string `json:"date,omitempty"`

	Comment string `json:"comment,omitempty"`

	// CAAMLVersion is the namespace URI of the schema the source document
	// was written against, e.g.
	// "{http://caaml.org/Schemas/SnowProfileIACS/v6.0.3}".
	CAAMLVersion string `json:"caaml_version,omitempty"`

	User     User               `json:"user"`
	Location Location           `json:"location"`
	Weather  *WeatherConditions `json:"weather,omitempty"`
}

// User describes the observer. Professional observers submit under an
// operation (an avalanche center or guide service); recreational observers
// submit under a bare contact person.
type User struct {
	OperationID   string `json:"operation_id,omitempty"`
	OperationName string `json:"operation_name,omitempty"`

	// Professional is true when the document carries an Operation block.
	Professional bool `json:"professional"`

	// ContactPersonID is the person's full gml:id, e.g.
	// "SnowPilot-User-15812".
	ContactPersonID string `json:"contact_person_id,omitempty"`

	Username string `json:"username,omitempty"`
}

// Location is the pit site. Latitude and longitude are decimal degrees from
// the document's gml:pos point; nil when the submitter withheld coordinates.
type Location struct {
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Elevation *Quantity `json:"elevation,omitempty"`

	SlopeAngle *Quantity `json:"slope_angle,omitempty"`
	Aspect     string    `json:"aspect,omitempty"`

	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`

	// NearAvalanche reports whether the pit was dug near recent avalanche
	// activity; NearAvalancheLocation says where relative to the slide
	// (e.g. "crown", "flank").
	NearAvalanche         *bool  `json:"near_avalanche,omitempty"`
	NearAvalancheLocation string `json:"near_avalanche_location,omitempty"`
}

// WeatherConditions is the sky/precip/wind snapshot taken at observation
// time. Sky condition, precipitation, and wind speed use the standard
// observation guideline codes ("SCT", "Nil", "C") and are carried verbatim.
type WeatherConditions struct {
	SkyCondition   string    `json:"sky_condition,omitempty"`
	Precipitation  string    `json:"precipitation,omitempty"`
	AirTemperature *Quantity `json:"air_temperature,omitempty"`
	WindSpeed      string    `json:"wind_speed,omitempty"`
	WindDirection  string    `json:"wind_direction,omitempty"`
}
