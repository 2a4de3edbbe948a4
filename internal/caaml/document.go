package caaml

import "encoding/xml"

// The structs below mirror the CAAML document tree closely enough for
// encoding/xml to bind it. All element tags use bare local names, so the
// same structs decode every namespace generation SnowPilot has shipped
// (the v5 flat URI and the v6.0.x ones) plus the gml and snowpilot
// extension namespaces; the generation is recovered afterwards from the
// root element's own namespace.
//
// Fields that carry a measured magnitude decode into measuredDoc (text plus
// uom attribute) and are coerced to domain quantities by the mapper, not
// here.

type snowProfileDoc struct {
	XMLName xml.Name

	MetaData   metaDataDoc   `xml:"metaData"`
	TimeRef    timeRefDoc    `xml:"timeRef"`
	SrcRef     srcRefDoc     `xml:"srcRef"`
	LocRef     *locRefDoc    `xml:"locRef"`
	ResultsOf  resultsOfDoc  `xml:"snowProfileResultsOf"`
	CustomData customDataDoc `xml:"customData"`
}

type metaDataDoc struct {
	Comment    string        `xml:"comment"`
	CustomData customDataDoc `xml:"customData"`
}

type timeRefDoc struct {
	// SnowPilot nests the observation timestamp as
	// timeRef > recordTime > TimeInstant > timePosition.
	TimePosition string `xml:"recordTime>TimeInstant>timePosition"`
}

// srcRefDoc distinguishes professional submissions (an Operation block with
// a contact person inside) from recreational ones (a bare Person).
type srcRefDoc struct {
	Operation *operationDoc `xml:"Operation"`
	Person    *personDoc    `xml:"Person"`
}

type operationDoc struct {
	ID            string     `xml:"id,attr"`
	Name          string     `xml:"name"`
	ContactPerson *personDoc `xml:"contactPerson>Person"`
}

type personDoc struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name"`
}

type locRefDoc struct {
	ID string `xml:"id,attr"`

	Name               string       `xml:"name"`
	ElevationPosition  *measuredDoc `xml:"validElevation>ElevationPosition"`
	AspectPosition     string       `xml:"validAspect>AspectPosition>position"`
	SlopeAnglePosition *measuredDoc `xml:"validSlopeAngle>SlopeAnglePosition"`
	Country            string       `xml:"country"`
	Region             string       `xml:"region"`
	PointLocation      string       `xml:"pointLocation>Point>pos"`

	PitNearAvalanche *pitNearAvalancheDoc `xml:"pitNearAvalanche"`
}

// pitNearAvalancheDoc is the snowpilot-namespace proximity flag:
// <snowpilot:pitNearAvalanche location="crown">true</snowpilot:pitNearAvalanche>
type pitNearAvalancheDoc struct {
	Location string `xml:"location,attr"`
	Text     string `xml:",chardata"`
}

// measuredDoc is any element of the shape <x uom="cm">66</x>. Position
// covers the ElevationPosition/SlopeAnglePosition variant that nests the
// number in a position child instead of the element text.
type measuredDoc struct {
	UOM      string `xml:"uom,attr"`
	Text     string `xml:",chardata"`
	Position string `xml:"position"`
}

type resultsOfDoc struct {
	Measurements measurementsDoc `xml:"SnowProfileMeasurements"`
}

type measurementsDoc struct {
	Direction string `xml:"dir,attr"`

	ProfileDepth *measuredDoc `xml:"profileDepth"`
	WeatherCond  *weatherDoc  `xml:"weatherCond"`
	SnowPackCond *snowPackDoc `xml:"snowPackCond"`
	SurfCond     *surfCondDoc `xml:"surfCond"`

	StratProfile   *stratProfileDoc   `xml:"stratProfile"`
	TempProfile    *tempProfileDoc    `xml:"tempProfile"`
	DensityProfile *densityProfileDoc `xml:"densityProfile"`
	StbTests       *stbTestsDoc       `xml:"stbTests"`

	CustomData customDataDoc `xml:"customData"`
}

type weatherDoc struct {
	SkyCond  string       `xml:"skyCond"`
	PrecipTI string       `xml:"precipTI"`
	AirTemp  *measuredDoc `xml:"airTempPres"`
	WindSpd  string       `xml:"windSpd"`
	WindDir  string       `xml:"windDir>AspectPosition>position"`
}

type snowPackDoc struct {
	// Total snow height nests as hS > Components > height.
	Height *measuredDoc `xml:"hS>Components>height"`
}

type surfCondDoc struct {
	PenetrationFoot *measuredDoc `xml:"penetrationFoot"`
	PenetrationSki  *measuredDoc `xml:"penetrationSki"`
}

type stratProfileDoc struct {
	Layers []layerDoc `xml:"Layer"`
}

type layerDoc struct {
	DepthTop  *measuredDoc `xml:"depthTop"`
	Thickness *measuredDoc `xml:"thickness"`

	Hardness       string `xml:"hardness"`
	HardnessTop    string `xml:"hardnessTop"`
	HardnessBottom string `xml:"hardnessBottom"`

	GrainFormPrimary   string        `xml:"grainFormPrimary"`
	GrainFormSecondary string        `xml:"grainFormSecondary"`
	GrainSize          *grainSizeDoc `xml:"grainSize"`

	Density *measuredDoc `xml:"density"`
	Wetness string       `xml:"wetness"`

	// layerOfConcern is an element with "true"/"false" text, not an
	// attribute.
	LayerOfConcern string `xml:"layerOfConcern"`

	Comment string `xml:"metaData>comment"`
}

// grainSizeDoc carries one uom attribute that applies to both the avg and
// avgMax components.
type grainSizeDoc struct {
	UOM    string `xml:"uom,attr"`
	Avg    string `xml:"Components>avg"`
	AvgMax string `xml:"Components>avgMax"`
}

type tempProfileDoc struct {
	Obs []tempObsDoc `xml:"Obs"`
}

type tempObsDoc struct {
	Depth    *measuredDoc `xml:"depth"`
	SnowTemp *measuredDoc `xml:"snowTemp"`
}

type densityProfileDoc struct {
	Layers []densityObsDoc `xml:"Layer"`
}

type densityObsDoc struct {
	DepthTop  *measuredDoc `xml:"depthTop"`
	Thickness *measuredDoc `xml:"thickness"`
	Density   *measuredDoc `xml:"density"`
}

// stbTestsDoc collects every child element in document order; the mapper
// dispatches on local name (ExtColumnTest, ComprTest, RBlockTest,
// PropSawTest, StuffBlockTest, ShovelShearTest, DeepTapTest) and ignores
// anything else.
type stbTestsDoc struct {
	Tests []testWrapperDoc `xml:",any"`
}

// testWrapperDoc is one test element. Its children are outcome blocks
// (failedOn or noFailure); only the first is read, matching how SnowPilot
// writes exactly one outcome per test element. A wrapper with no outcome
// block is unreadable and gets skipped.
type testWrapperDoc struct {
	XMLName  xml.Name
	Outcomes []testOutcomeDoc `xml:",any"`
}

// testOutcomeDoc is a failedOn/noFailure block. Layer carries the failure
// depth, Results the scores. SnowPilot has moved the comment around between
// releases, so each plausible spot is bound and comment() takes the first
// one present.
type testOutcomeDoc struct {
	XMLName xml.Name

	Layer   testLayerDoc   `xml:"Layer"`
	Results testResultsDoc `xml:"Results"`

	MetaComment   string `xml:"metaData>comment"`
	DirectComment string `xml:"comment"`
}

func (o *testOutcomeDoc) comment() string {
	for _, c := range []string{o.MetaComment, o.Results.Comment, o.Layer.Comment, o.DirectComment} {
		if c != "" {
			return c
		}
	}
	return ""
}

type testLayerDoc struct {
	DepthTop *measuredDoc `xml:"depthTop"`
	Comment  string       `xml:"metaData>comment"`
}

type testResultsDoc struct {
	TestScore         string `xml:"testScore"`
	FractureCharacter string `xml:"fractureCharacter"`
	ReleaseType       string `xml:"releaseType"`
	FractureProp      string `xml:"fractureProp"`
	CutLength         string `xml:"cutLength"`
	ColumnLength      string `xml:"columnLength"`
	Comment           string `xml:"metaData>comment"`
}

// customDataDoc appears at several levels of the document; SnowPilot parks
// its extension elements in whichever block its exporter version favored.
type customDataDoc struct {
	Whumpf           *whumpfDoc           `xml:"whumpfData"`
	WindLoading      string               `xml:"windLoading"`
	PitNearAvalanche *pitNearAvalancheDoc `xml:"pitNearAvalanche"`
}

type whumpfDoc struct {
	WhumpfCracking           string `xml:"whumpfCracking"`
	WhumpfNoCracking         string `xml:"whumpfNoCracking"`
	CrackingNoWhumpf         string `xml:"crackingNoWhumpf"`
	WhumpfNearPit            string `xml:"whumpfNearPit"`
	WhumpfTriggeredRemoteAva string `xml:"whumpfTriggeredRemoteAva"`
	WhumpfDepthWeakLayer     string `xml:"whumpfDepthWeakLayer"`
	WhumpfSize               string `xml:"whumpfSize"`
}
