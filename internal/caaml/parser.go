// Package caaml parses SnowPilot CAAML snow profile documents into domain
// snow pits.
//
// Element matching uses local names only, so v5-era and current v6
// documents decode identically; the schema generation a document was
// written against is reported in CoreInfo.CAAMLVersion. Only the locRef
// anchor is mandatory. Everything else may be absent and maps to nil or
// zero values, but a measured element that is present with unparseable
// text fails the document with a [FieldCoercionError].
package caaml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/snowpit-etl-service/internal/domain"
)

// Diagnostics counts document oddities that were tolerated rather than
// treated as fatal.
type Diagnostics struct {
	// SkippedTests counts stability test elements that carried no outcome
	// block and therefore could not be read.
	SkippedTests int
}

// ParseFile reads one CAAML document from disk. The returned pit is nil
// when the document is malformed or a measured value fails coercion;
// Diagnostics is meaningful in both outcomes.
func ParseFile(path string) (*domain.SnowPit, Diagnostics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Diagnostics{}, fmt.Errorf("open caaml document: %w", err)
	}
	defer f.Close()
	return parse(f, path)
}

// Parse reads one CAAML document from r. Errors carry no file name.
func Parse(r io.Reader) (*domain.SnowPit, Diagnostics, error) {
	return parse(r, "")
}

func parse(r io.Reader, file string) (*domain.SnowPit, Diagnostics, error) {
	var doc snowProfileDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, Diagnostics{}, &MalformedDocumentError{File: file, Err: err}
	}
	if doc.LocRef == nil || doc.LocRef.ID == "" {
		return nil, Diagnostics{}, &MalformedDocumentError{File: file, Err: ErrMissingLocRef}
	}

	m := &mapper{file: file}
	pit := m.snowPit(&doc)
	if m.err != nil {
		return nil, m.diag, m.err
	}
	return pit, m.diag, nil
}

// mapper walks the decoded document and builds the domain pit. The first
// coercion failure sticks; later values still map so diagnostics stay
// complete, but the pit is discarded by parse.
type mapper struct {
	file string
	diag Diagnostics
	err  error
}

func (m *mapper) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

func (m *mapper) snowPit(doc *snowProfileDoc) *domain.SnowPit {
	pit := &domain.SnowPit{}

	pit.CoreInfo = m.coreInfo(doc)
	pit.SnowProfile = m.snowProfile(&doc.ResultsOf.Measurements)
	if doc.ResultsOf.Measurements.StbTests != nil {
		pit.StabilityTests = m.stabilityTests(doc.ResultsOf.Measurements.StbTests)
	}
	m.applyCustomData(doc, pit)

	return pit
}

func (m *mapper) coreInfo(doc *snowProfileDoc) domain.CoreInfo {
	loc := doc.LocRef

	info := domain.CoreInfo{
		PitID:   pitIDFromAnchor(loc.ID),
		PitName: loc.Name,
		Date:    dateFromTimePosition(doc.TimeRef.TimePosition),
		Comment: doc.MetaData.Comment,
	}
	if doc.XMLName.Space != "" {
		info.CAAMLVersion = "{" + doc.XMLName.Space + "}"
	}

	info.User = m.user(&doc.SrcRef)
	info.Location = m.location(loc)
	if w := doc.ResultsOf.Measurements.WeatherCond; w != nil {
		info.Weather = &domain.WeatherConditions{
			SkyCondition:   w.SkyCond,
			Precipitation:  w.PrecipTI,
			AirTemperature: m.quantity("airTempPres", w.AirTemp),
			WindSpeed:      w.WindSpd,
			WindDirection:  w.WindDir,
		}
	}
	return info
}

func (m *mapper) user(src *srcRefDoc) domain.User {
	u := domain.User{}
	if op := src.Operation; op != nil {
		u.Professional = true
		u.OperationID = op.ID
		u.OperationName = op.Name
		if cp := op.ContactPerson; cp != nil {
			u.ContactPersonID = cp.ID
			u.Username = cp.Name
		}
	}
	// A bare Person outranks the operation contact; SnowPilot writes it
	// after the Operation block when both appear.
	if p := src.Person; p != nil {
		u.ContactPersonID = p.ID
		u.Username = p.Name
	}
	return u
}

func (m *mapper) location(loc *locRefDoc) domain.Location {
	l := domain.Location{
		Elevation:  m.quantity("ElevationPosition", loc.ElevationPosition),
		SlopeAngle: m.quantity("SlopeAnglePosition", loc.SlopeAnglePosition),
		Aspect:     loc.AspectPosition,
		Country:    loc.Country,
		Region:     loc.Region,
	}

	if pos := strings.TrimSpace(loc.PointLocation); pos != "" {
		fields := strings.Fields(pos)
		if len(fields) < 2 {
			m.fail(&FieldCoercionError{File: m.file, Element: "pos", Text: pos,
				Err: fmt.Errorf("want \"lat lon\" pair, got %d field(s)", len(fields))})
		} else {
			lat := m.float("pos", fields[0])
			lon := m.float("pos", fields[1])
			if lat != nil && lon != nil {
				l.Latitude, l.Longitude = lat, lon
			}
		}
	}

	m.applyAvalancheProximity(&l, loc.PitNearAvalanche)
	return l
}

func (m *mapper) applyAvalancheProximity(l *domain.Location, doc *pitNearAvalancheDoc) {
	if doc == nil {
		return
	}
	l.NearAvalanche = parseBoolText(doc.Text)
	l.NearAvalancheLocation = doc.Location
}

func (m *mapper) snowProfile(meas *measurementsDoc) domain.SnowProfile {
	p := domain.SnowProfile{
		MeasurementDirection: meas.Direction,
		ProfileDepth:         m.quantity("profileDepth", meas.ProfileDepth),
	}
	if meas.SnowPackCond != nil {
		p.TotalSnowHeight = m.quantity("height", meas.SnowPackCond.Height)
	}
	if sc := meas.SurfCond; sc != nil {
		p.Surface = &domain.SurfaceCondition{
			PenetrationFoot: m.quantity("penetrationFoot", sc.PenetrationFoot),
			PenetrationSki:  m.quantity("penetrationSki", sc.PenetrationSki),
		}
	}

	if meas.StratProfile != nil {
		for i := range meas.StratProfile.Layers {
			p.Layers = append(p.Layers, m.layer(&meas.StratProfile.Layers[i]))
		}
	}
	if meas.TempProfile != nil {
		for _, obs := range meas.TempProfile.Obs {
			p.Temperatures = append(p.Temperatures, &domain.TemperatureObservation{
				Depth:    m.quantity("depth", obs.Depth),
				SnowTemp: m.quantity("snowTemp", obs.SnowTemp),
			})
		}
	}
	if meas.DensityProfile != nil {
		for _, obs := range meas.DensityProfile.Layers {
			p.Densities = append(p.Densities, &domain.DensityObservation{
				DepthTop:  m.quantity("depthTop", obs.DepthTop),
				Thickness: m.quantity("thickness", obs.Thickness),
				Density:   m.quantity("density", obs.Density),
			})
		}
	}
	return p
}

func (m *mapper) layer(doc *layerDoc) *domain.Layer {
	l := &domain.Layer{
		DepthTop:       m.quantity("depthTop", doc.DepthTop),
		Thickness:      m.quantity("thickness", doc.Thickness),
		Hardness:       doc.Hardness,
		HardnessTop:    doc.HardnessTop,
		HardnessBottom: doc.HardnessBottom,
		Density:        m.quantity("density", doc.Density),
		Wetness:        doc.Wetness,
		LayerOfConcern: doc.LayerOfConcern == "true",
		Comment:        doc.Comment,
	}

	if doc.GrainFormPrimary != "" {
		l.GrainPrimary = &domain.Grain{Form: doc.GrainFormPrimary}
	}
	if gs := doc.GrainSize; gs != nil {
		// Size statistics belong to the primary grain; a document that
		// reports sizes without a form still gets them attached.
		if l.GrainPrimary == nil {
			l.GrainPrimary = &domain.Grain{}
		}
		if avg := strings.TrimSpace(gs.Avg); avg != "" {
			if v := m.float("grainSize/avg", avg); v != nil {
				l.GrainPrimary.SizeAvg = domain.NewQuantity(*v, gs.UOM)
			}
		}
		if max := strings.TrimSpace(gs.AvgMax); max != "" {
			if v := m.float("grainSize/avgMax", max); v != nil {
				l.GrainPrimary.SizeMax = domain.NewQuantity(*v, gs.UOM)
			}
		}
	}
	if doc.GrainFormSecondary != "" {
		l.GrainSecondary = &domain.Grain{Form: doc.GrainFormSecondary}
	}
	return l
}

func (m *mapper) stabilityTests(doc *stbTestsDoc) domain.StabilityTests {
	tests := domain.StabilityTests{}
	for i := range doc.Tests {
		w := &doc.Tests[i]
		if len(w.Outcomes) == 0 {
			m.diag.SkippedTests++
			continue
		}
		// Only the first outcome block is read; SnowPilot writes one
		// failedOn or noFailure per test element.
		o := &w.Outcomes[0]
		depth := m.quantity("depthTop", o.Layer.DepthTop)

		switch w.XMLName.Local {
		case "ExtColumnTest":
			tests.ECT = append(tests.ECT, &domain.ExtendedColumnTest{
				DepthTop:  depth,
				TestScore: o.Results.TestScore,
				Comment:   o.comment(),
			})
		case "ComprTest":
			tests.CT = append(tests.CT, &domain.CompressionTest{
				DepthTop:     depth,
				TestScore:    o.Results.TestScore,
				ShearQuality: o.Results.FractureCharacter,
				Comment:      o.comment(),
			})
		case "RBlockTest":
			tests.RBT = append(tests.RBT, &domain.RutschblockTest{
				DepthTop:     depth,
				TestScore:    o.Results.TestScore,
				ReleaseType:  o.Results.ReleaseType,
				ShearQuality: o.Results.FractureCharacter,
				Comment:      o.comment(),
			})
		case "PropSawTest":
			tests.PST = append(tests.PST, &domain.PropagationSawTest{
				DepthTop:     depth,
				FractureProp: o.Results.FractureProp,
				CutLength:    o.Results.CutLength,
				ColumnLength: o.Results.ColumnLength,
				Comment:      o.comment(),
			})
		case "StuffBlockTest":
			tests.SBT = append(tests.SBT, &domain.StuffBlockTest{
				DepthTop:     depth,
				TestScore:    o.Results.TestScore,
				ShearQuality: o.Results.FractureCharacter,
				Comment:      o.comment(),
			})
		case "ShovelShearTest":
			tests.SST = append(tests.SST, &domain.ShovelShearTest{
				DepthTop:  depth,
				TestScore: o.Results.TestScore,
				Comment:   o.comment(),
			})
		case "DeepTapTest":
			tests.DTT = append(tests.DTT, &domain.DeepTapTest{
				DepthTop:     depth,
				TestScore:    o.Results.TestScore,
				ShearQuality: o.Results.FractureCharacter,
				Comment:      o.comment(),
			})
		}
	}
	return tests
}

// applyCustomData folds the extension blocks into the pit. Blocks are
// applied in document order so a later whumpfData or proximity flag
// overrides an earlier one, matching how SnowPilot's own tooling reads
// duplicated blocks.
func (m *mapper) applyCustomData(doc *snowProfileDoc, pit *domain.SnowPit) {
	blocks := []*customDataDoc{
		&doc.MetaData.CustomData,
		&doc.ResultsOf.Measurements.CustomData,
		&doc.CustomData,
	}
	for _, b := range blocks {
		if b.Whumpf != nil {
			pit.Whumpf = whumpfFromDoc(b.Whumpf)
		}
		if b.WindLoading != "" {
			if pit.SnowProfile.Surface == nil {
				pit.SnowProfile.Surface = &domain.SurfaceCondition{}
			}
			pit.SnowProfile.Surface.WindLoading = b.WindLoading
		}
		m.applyAvalancheProximity(&pit.CoreInfo.Location, b.PitNearAvalanche)
	}
}

func whumpfFromDoc(doc *whumpfDoc) *domain.WhumpfObservation {
	return &domain.WhumpfObservation{
		WhumpfCracking:           parseBoolText(doc.WhumpfCracking),
		WhumpfNoCracking:         parseBoolText(doc.WhumpfNoCracking),
		CrackingNoWhumpf:         parseBoolText(doc.CrackingNoWhumpf),
		WhumpfNearPit:            parseBoolText(doc.WhumpfNearPit),
		WhumpfTriggeredRemoteAva: parseBoolText(doc.WhumpfTriggeredRemoteAva),
		WhumpfDepthWeakLayer:     doc.WhumpfDepthWeakLayer,
		WhumpfSize:               doc.WhumpfSize,
	}
}

// quantity coerces a measured element to a domain quantity. Absent elements
// map to nil; present elements with unparseable text fail the document.
func (m *mapper) quantity(element string, doc *measuredDoc) *domain.Quantity {
	if doc == nil {
		return nil
	}
	text := strings.TrimSpace(doc.Position)
	if text == "" {
		text = strings.TrimSpace(doc.Text)
	}
	v := m.float(element, text)
	if v == nil {
		return nil
	}
	return domain.NewQuantity(*v, doc.UOM)
}

func (m *mapper) float(element, text string) *float64 {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		m.fail(&FieldCoercionError{File: m.file, Element: element, Text: text, Err: err})
		return nil
	}
	return &v
}

// pitIDFromAnchor strips the "SnowPilot-" style prefix from a locRef gml:id,
// keeping the trailing numeric segment.
func pitIDFromAnchor(id string) string {
	if i := strings.LastIndex(id, "-"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// dateFromTimePosition truncates an ISO timestamp to its date:
// "2025-02-26T00:00:00-07:00" → "2025-02-26".
func dateFromTimePosition(text string) string {
	text = strings.TrimSpace(text)
	if d, _, found := strings.Cut(text, "T"); found {
		return d
	}
	return text
}

func parseBoolText(text string) *bool {
	switch strings.TrimSpace(text) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
