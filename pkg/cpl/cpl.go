// Package cpl implements the Composition Playlist: the manifest
// describing a composition's reels and their picture/sound/subtitle/
// atmos/closed-caption asset references (spec.md §3, §4.6).
package cpl

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/mart-jansink/libdcp/pkg/asset"
	"github.com/mart-jansink/libdcp/pkg/dcpcert"
	"github.com/mart-jansink/libdcp/pkg/dcpid"
	"github.com/mart-jansink/libdcp/pkg/dcpsig"
	"github.com/mart-jansink/libdcp/pkg/kdm"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// ContentKind is the <ContentKind> enumeration a CPL declares.
type ContentKind int

const (
	ContentKindUnknown ContentKind = iota
	ContentKindFeature
	ContentKindShort
	ContentKindTrailer
	ContentKindTest
	ContentKindTransitional
	ContentKindRating
	ContentKindTeaser
	ContentKindPolicy
	ContentKindPSA
	ContentKindAdvertisement
)

var contentKindStrings = map[ContentKind]string{
	ContentKindFeature:       "feature",
	ContentKindShort:         "short",
	ContentKindTrailer:       "trailer",
	ContentKindTest:          "test",
	ContentKindTransitional:  "transitional",
	ContentKindRating:        "rating",
	ContentKindTeaser:        "teaser",
	ContentKindPolicy:        "policy",
	ContentKindPSA:           "psa",
	ContentKindAdvertisement: "advertisement",
}

// String renders kind the way it is written into a <ContentKind> element.
func (k ContentKind) String() string {
	if s, ok := contentKindStrings[k]; ok {
		return s
	}
	return "unknown"
}

// ErrUnknownContentKind is returned by ParseContentKind for a string that
// does not match any of the CPL's ten content kinds.
var ErrUnknownContentKind = errors.New("cpl: unrecognized ContentKind")

// ParseContentKind parses a <ContentKind> element's text, tolerant of
// case the way the original reader is ("reasonably tolerant about
// varying case" — spec is silent here, original_source is authoritative).
func ParseContentKind(s string) (ContentKind, error) {
	lower := toLower(s)
	for k, v := range contentKindStrings {
		if v == lower {
			return k, nil
		}
	}
	return ContentKindUnknown, ErrUnknownContentKind
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ContentVersion identifies one version of a composition's content.
type ContentVersion struct {
	ID    string
	Label string
}

// Rating is one entry of a CPL's RatingList.
type Rating struct {
	Agency string
	Label  string
}

// MarkerKind is a symbolic marker label (spec.md §3 Marker).
type MarkerKind int

const (
	MarkerFFOC MarkerKind = iota
	MarkerLFOC
	MarkerFFEC
	MarkerFFMC
)

var markerKindStrings = map[MarkerKind]string{
	MarkerFFOC: "FFOC",
	MarkerLFOC: "LFOC",
	MarkerFFEC: "FFEC",
	MarkerFFMC: "FFMC",
}

func (k MarkerKind) String() string { return markerKindStrings[k] }

// Marker is a symbolic label with a time code, expressed as an edit-unit
// offset at the reel's edit rate (spec.md §3).
type Marker struct {
	Kind       MarkerKind
	EditUnit   int
}

// ReelAssetReference is one reel slot: a reference to an asset by id,
// together with the trim parameters the reel itself controls (spec.md §3).
type ReelAssetReference struct {
	ID                  dcpid.Identifier
	AnnotationText      string
	EditRate            asset.EditRate
	IntrinsicDuration   int
	EntryPoint          *int
	Duration            *int
	Hash                string
	KeyID               dcpid.Identifier

	// Resolved is filled in by the package loader's reference-resolution
	// phase (spec.md Design Note 2); nil until resolved.
	Resolved asset.Asset
}

// ErrInvalidEntryPoint is returned when EntryPoint exceeds IntrinsicDuration.
var ErrInvalidEntryPoint = errors.New("cpl: entry point exceeds intrinsic duration")

// Validate checks the entry_point <= intrinsic_duration invariant
// (spec.md §3).
func (r *ReelAssetReference) Validate() error {
	if r.EntryPoint != nil && *r.EntryPoint > r.IntrinsicDuration {
		return ErrInvalidEntryPoint
	}
	return nil
}

// ActualDuration computes duration.unwrap_or(intrinsic_duration -
// entry_point.unwrap_or(0)), the invariant spec.md §8 tests directly.
func (r *ReelAssetReference) ActualDuration() int {
	if r.Duration != nil {
		return *r.Duration
	}
	entry := 0
	if r.EntryPoint != nil {
		entry = *r.EntryPoint
	}
	return r.IntrinsicDuration - entry
}

// Reel is an ordered segment of a composition: at most one each of main
// picture/sound/subtitle/markers/atmos, plus zero or more closed-caption
// tracks (spec.md §3).
type Reel struct {
	ID               dcpid.Identifier
	MainPicture      *ReelAssetReference
	MainSound        *ReelAssetReference
	MainSubtitle     *ReelAssetReference
	MainMarkers      []Marker
	Atmos            *ReelAssetReference
	ClosedCaptions   []*ReelAssetReference
}

// NewReel constructs an empty reel with a fresh identifier.
func NewReel() *Reel {
	return &Reel{ID: dcpid.New()}
}

// CompositionMetadataAsset carries the SMPTE-only metadata block a CPL's
// first reel may declare (spec.md §3).
type CompositionMetadataAsset struct {
	ID                  dcpid.Identifier
	ReleaseTerritory    string
	VersionNumber       int
	VersionStatus       string
	Chain               string
	Distributor         string
	Facility            string
	Luminance           float64
	MainSoundConfiguration string
	MainSoundSampleRate    int
	MainPictureStoredWidth  int
	MainPictureStoredHeight int
	MainPictureActiveWidth  int
	MainPictureActiveHeight int
	SubtitleLanguages   []string

	ExtensionScope         string
	ExtensionName          string
	ExtensionPropertyName  string
	ExtensionPropertyValue string
}

// CPL is a parsed or under-construction Composition Playlist.
type CPL struct {
	ID               dcpid.Identifier
	Annotation       string
	ContentTitleText string
	ContentKind      ContentKind
	Issuer           string
	Creator          string
	IssueDate        string
	ContentVersions  []ContentVersion
	Ratings          []Rating
	Reels            []*Reel
	Metadata         *CompositionMetadataAsset
	Dialect          xmlcodec.Dialect

	// Signed reports whether this CPL carries a <Signature> element,
	// either because Read found one on the parsed document or because
	// Write was given a signer. The verifier's encryption rule family
	// reads it to decide whether a CPL referencing encrypted content
	// satisfies spec.md §4.8's "signed if encrypted" requirement,
	// mirroring the original's optional_node_child("Signature") check.
	Signed bool
}

// New constructs an empty CPL with a fresh identifier.
func New(contentTitle string, kind ContentKind, dialect xmlcodec.Dialect) *CPL {
	return &CPL{
		ID:               dcpid.New(),
		Annotation:       contentTitle,
		ContentTitleText: contentTitle,
		ContentKind:      kind,
		Dialect:          dialect,
		ContentVersions: []ContentVersion{
			{ID: dcpid.New().String(), Label: contentTitle},
		},
	}
}

// ErrNoContentVersion is returned by Validate when a CPL carries no
// ContentVersion entries (spec.md §3 invariant: ≥1 ContentVersion).
var ErrNoContentVersion = errors.New("cpl: at least one ContentVersion is required")

// ErrMissingCompositionMetadata names the rule that a SMPTE CPL setting
// sound configuration, sample rate, or picture areas must carry a
// CompositionMetadataAsset. Validate does not return it: those fields
// exist only on CompositionMetadataAsset, so a CPL without one cannot set
// them.
var ErrMissingCompositionMetadata = errors.New("cpl: SMPTE CPL requires CompositionMetadataAsset when sound config, sample rate, or picture areas are set")

// Validate checks the CPL-level invariants from spec.md §3.
func (c *CPL) Validate() error {
	if len(c.ContentVersions) == 0 {
		return ErrNoContentVersion
	}
	for _, r := range c.Reels {
		for _, ref := range c.referencesOf(r) {
			if err := ref.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// References returns every asset reference a reel holds (picture, sound,
// subtitle, atmos, then closed captions; markers are not references), for callers (the package writer) that need to walk them
// without re-implementing the per-kind slot dispatch.
func (c *CPL) References(r *Reel) []*ReelAssetReference {
	return c.referencesOf(r)
}

func (c *CPL) referencesOf(r *Reel) []*ReelAssetReference {
	var refs []*ReelAssetReference
	if r.MainPicture != nil {
		refs = append(refs, r.MainPicture)
	}
	if r.MainSound != nil {
		refs = append(refs, r.MainSound)
	}
	if r.MainSubtitle != nil {
		refs = append(refs, r.MainSubtitle)
	}
	if r.Atmos != nil {
		refs = append(refs, r.Atmos)
	}
	refs = append(refs, r.ClosedCaptions...)
	return refs
}

// AddReel appends a reel to the composition.
func (c *CPL) AddReel(r *Reel) {
	c.Reels = append(c.Reels, r)
}

// AddKDM applies kdmObj to this CPL: for every reel asset reference whose
// KeyID matches one of kdmObj's triples, it records the key's presence by
// overwriting the reference's Hash with digestPlaceholderForKey's marker.
// The key bytes themselves are not stored on the reference. Triples whose CPLID does not match
// this CPL are ignored, mirroring DCP::add(kdm) iterating every CPL and
// letting each pick out only its own keys.
func (c *CPL) AddKDM(kdmObj kdm.DecryptedKDM) {
	if !kdmObj.CPLID.Equal(c.ID) {
		return
	}
	for _, r := range c.Reels {
		for _, ref := range c.referencesOf(r) {
			if key, ok := kdmObj.KeyByID(ref.KeyID); ok {
				ref.Hash = digestPlaceholderForKey(key)
			}
		}
	}
}

// digestPlaceholderForKey exists only so AddKDM has somewhere concrete to
// put a decrypted key's presence without widening ReelAssetReference with
// a raw-key field the CPL manifest never serializes; callers that need
// the actual key bytes read them from the DecryptedKDM directly via
// KeyByID, as AddKDM's match above already did.
func digestPlaceholderForKey(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	return fmt.Sprintf("applied:%d-bytes", len(key))
}

// ErrCouldNotSign is re-exported from dcpsig for callers that only import
// this package.
var ErrCouldNotSign = dcpsig.ErrCouldNotSign

// Write builds the CPL's XML document and, if chain is non-nil, signs it
// atomically — no further serialization step may run on the returned
// document afterward, or the embedded digest goes stale (spec.md §4.6
// step 4, Design Note "signing ordering fragility").
func (c *CPL) Write(chain *dcpcert.Chain) (*xmlcodec.Document, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ns := xmlcodec.NamespaceFor(xmlcodec.KindCPL, c.Dialect)
	if ns == "" {
		return nil, fmt.Errorf("cpl: no namespace for dialect %v", c.Dialect)
	}

	doc := xmlcodec.NewDocument()
	doc.Kind = xmlcodec.KindCPL
	doc.Dialect = c.Dialect

	root := doc.CreateElement("CompositionPlaylist")
	root.CreateAttr("xmlns", ns)

	root.CreateElement("Id").SetText(c.ID.String())
	root.CreateElement("AnnotationText").SetText(c.Annotation)
	root.CreateElement("IssueDate").SetText(c.IssueDate)
	root.CreateElement("Issuer").SetText(c.Issuer)
	root.CreateElement("Creator").SetText(c.Creator)
	root.CreateElement("ContentTitleText").SetText(c.ContentTitleText)
	root.CreateElement("ContentKind").SetText(c.ContentKind.String())

	cv := root.CreateElement("ContentVersion")
	cv.CreateElement("Id").SetText(c.ContentVersions[0].ID)
	cv.CreateElement("LabelText").SetText(c.ContentVersions[0].Label)

	ratingList := root.CreateElement("RatingList")
	for _, r := range c.Ratings {
		rating := ratingList.CreateElement("Rating")
		rating.CreateElement("Agency").SetText(r.Agency)
		rating.CreateElement("Label").SetText(r.Label)
	}

	reelList := root.CreateElement("ReelList")
	for i, reel := range c.Reels {
		reelEl := reelList.CreateElement("Reel")
		reelEl.CreateElement("Id").SetText(reel.ID.String())
		assetList := reelEl.CreateElement("AssetList")

		if reel.MainPicture != nil {
			writeRef(assetList, "MainPicture", reel.MainPicture)
		}
		if reel.MainSound != nil {
			writeRef(assetList, "MainSound", reel.MainSound)
		}
		if reel.MainSubtitle != nil {
			writeRef(assetList, "MainSubtitle", reel.MainSubtitle)
		}
		for _, cc := range reel.ClosedCaptions {
			writeRef(assetList, "MainClosedCaption", cc)
		}
		if reel.Atmos != nil {
			writeRef(assetList, "AuxData", reel.Atmos)
		}
		if len(reel.MainMarkers) > 0 {
			markersEl := assetList.CreateElement("MainMarkers")
			for _, m := range reel.MainMarkers {
				markerEl := markersEl.CreateElement("Marker")
				markerEl.CreateAttr("Label", m.Kind.String())
				markerEl.SetText(fmt.Sprintf("%d", m.EditUnit))
			}
		}

		if i == 0 && c.Dialect == xmlcodec.DialectSMPTE && c.Metadata != nil {
			writeCompositionMetadata(assetList, c.Metadata)
		}
	}

	if chain != nil {
		if err := dcpsig.Sign(doc, c.Dialect, chain); err != nil {
			return nil, err
		}
		c.Signed = true
	}

	return doc, nil
}

// writeRef emits one reel asset reference node. Empty AnnotationText is
// omitted entirely: some playback systems refuse to play a DCP whose
// asset nodes carry an empty <AnnotationText> element.
func writeRef(parent *etree.Element, tag string, ref *ReelAssetReference) {
	el := parent.CreateElement(tag)
	el.CreateElement("Id").SetText(ref.ID.String())
	if ref.AnnotationText != "" {
		el.CreateElement("AnnotationText").SetText(ref.AnnotationText)
	}
	el.CreateElement("EditRate").SetText(ref.EditRate.String())
	el.CreateElement("IntrinsicDuration").SetText(strconv.Itoa(ref.IntrinsicDuration))
	if ref.EntryPoint != nil {
		el.CreateElement("EntryPoint").SetText(strconv.Itoa(*ref.EntryPoint))
	}
	if ref.Duration != nil {
		el.CreateElement("Duration").SetText(strconv.Itoa(*ref.Duration))
	}
	if ref.Hash != "" {
		el.CreateElement("Hash").SetText(ref.Hash)
	}
	if !ref.KeyID.IsZero() {
		el.CreateElement("KeyId").SetText(ref.KeyID.String())
	}
}

// writeCompositionMetadata emits the SMPTE-only <CompositionMetadataAsset>
// block into the first reel's asset list (spec.md §4.6 step 3).
func writeCompositionMetadata(parent *etree.Element, m *CompositionMetadataAsset) {
	el := parent.CreateElement("CompositionMetadataAsset")
	el.CreateElement("Id").SetText(m.ID.String())
	if m.ReleaseTerritory != "" {
		el.CreateElement("ReleaseTerritory").SetText(m.ReleaseTerritory)
	}
	vn := el.CreateElement("VersionNumber")
	vn.SetText(strconv.Itoa(m.VersionNumber))
	if m.VersionStatus != "" {
		vn.CreateAttr("Status", m.VersionStatus)
	}
	if m.Chain != "" {
		el.CreateElement("Chain").SetText(m.Chain)
	}
	if m.Distributor != "" {
		el.CreateElement("Distributor").SetText(m.Distributor)
	}
	if m.Facility != "" {
		el.CreateElement("Facility").SetText(m.Facility)
	}
	if m.Luminance != 0 {
		lum := el.CreateElement("Luminance")
		lum.SetText(strconv.FormatFloat(m.Luminance, 'f', 1, 64))
		lum.CreateAttr("Units", "candela-per-square-metre")
	}
	if m.MainSoundConfiguration != "" {
		msc := el.CreateElement("MainSoundConfiguration")
		msc.SetText(m.MainSoundConfiguration)
	}
	if m.MainSoundSampleRate != 0 {
		el.CreateElement("MainSoundSampleRate").SetText(strconv.Itoa(m.MainSoundSampleRate))
	}
	if m.MainPictureStoredWidth != 0 && m.MainPictureStoredHeight != 0 {
		stored := el.CreateElement("MainPictureStoredArea")
		stored.CreateElement("Width").SetText(strconv.Itoa(m.MainPictureStoredWidth))
		stored.CreateElement("Height").SetText(strconv.Itoa(m.MainPictureStoredHeight))
	}
	if m.MainPictureActiveWidth != 0 && m.MainPictureActiveHeight != 0 {
		active := el.CreateElement("MainPictureActiveArea")
		active.CreateElement("Width").SetText(strconv.Itoa(m.MainPictureActiveWidth))
		active.CreateElement("Height").SetText(strconv.Itoa(m.MainPictureActiveHeight))
	}
	if len(m.SubtitleLanguages) > 0 {
		langs := el.CreateElement("MainSubtitleLanguageList")
		for _, lang := range m.SubtitleLanguages {
			langs.CreateElement("MainSubtitleLanguage").SetText(lang)
		}
	}
	scope, name, propName, propValue := m.ExtensionScope, m.ExtensionName, m.ExtensionPropertyName, m.ExtensionPropertyValue
	if scope == "" {
		scope = "http://isdcf.com/ns/cplmd/app"
	}
	if name == "" {
		name = "Application"
	}
	if propName == "" {
		propName = "DCP Constraints Profile"
	}
	if propValue == "" {
		propValue = "SMPTE-RDD-52:2020-Bv2.1"
	}
	extension := el.CreateElement("ExtensionMetadataList").CreateElement("ExtensionMetadata")
	extension.CreateAttr("scope", scope)
	extension.CreateElement("Name").SetText(name)
	property := extension.CreateElement("PropertyList").CreateElement("Property")
	property.CreateElement("Name").SetText(propName)
	property.CreateElement("Value").SetText(propValue)
}

// ErrNotACPL is returned by Read when doc is not a CompositionPlaylist.
var ErrNotACPL = errors.New("cpl: document is not a CompositionPlaylist")

// Read parses doc (already resolved to KindCPL by xmlcodec.Load) into a
// CPL. Reel asset references are left unresolved; the package loader's
// two-phase load fills in Resolved by id lookup against the package's
// flat asset vector (spec.md Design Note 2).
func Read(doc *xmlcodec.Document) (*CPL, error) {
	if doc.Kind != xmlcodec.KindCPL {
		return nil, ErrNotACPL
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNotACPL
	}

	c := &CPL{Dialect: doc.Dialect, Signed: root.SelectElement("Signature") != nil}

	if el := root.SelectElement("Id"); el != nil {
		id, err := dcpid.Parse(el.Text())
		if err != nil {
			return nil, fmt.Errorf("cpl: %w", err)
		}
		c.ID = id
	}
	if el := root.SelectElement("AnnotationText"); el != nil {
		c.Annotation = el.Text()
	}
	if el := root.SelectElement("IssueDate"); el != nil {
		c.IssueDate = el.Text()
	}
	if el := root.SelectElement("Issuer"); el != nil {
		c.Issuer = el.Text()
	}
	if el := root.SelectElement("Creator"); el != nil {
		c.Creator = el.Text()
	}
	if el := root.SelectElement("ContentTitleText"); el != nil {
		c.ContentTitleText = el.Text()
	}
	if el := root.SelectElement("ContentKind"); el != nil {
		kind, err := ParseContentKind(el.Text())
		if err != nil {
			return nil, fmt.Errorf("cpl: %w", err)
		}
		c.ContentKind = kind
	}
	if cv := root.SelectElement("ContentVersion"); cv != nil {
		var v ContentVersion
		if idEl := cv.SelectElement("Id"); idEl != nil {
			v.ID = idEl.Text()
		}
		if labelEl := cv.SelectElement("LabelText"); labelEl != nil {
			v.Label = labelEl.Text()
		}
		c.ContentVersions = append(c.ContentVersions, v)
	}
	if ratingList := root.SelectElement("RatingList"); ratingList != nil {
		for _, ratingEl := range ratingList.SelectElements("Rating") {
			var r Rating
			if el := ratingEl.SelectElement("Agency"); el != nil {
				r.Agency = el.Text()
			}
			if el := ratingEl.SelectElement("Label"); el != nil {
				r.Label = el.Text()
			}
			c.Ratings = append(c.Ratings, r)
		}
	}

	reelList := root.SelectElement("ReelList")
	if reelList == nil {
		return c, nil
	}
	for i, reelEl := range reelList.SelectElements("Reel") {
		reel := &Reel{}
		if idEl := reelEl.SelectElement("Id"); idEl != nil {
			id, err := dcpid.Parse(idEl.Text())
			if err != nil {
				return nil, fmt.Errorf("cpl: %w", err)
			}
			reel.ID = id
		}
		assetList := reelEl.SelectElement("AssetList")
		if assetList == nil {
			c.Reels = append(c.Reels, reel)
			continue
		}

		if el := assetList.SelectElement("MainPicture"); el != nil {
			ref, err := readRef(el)
			if err != nil {
				return nil, err
			}
			reel.MainPicture = ref
		}
		if el := assetList.SelectElement("MainSound"); el != nil {
			ref, err := readRef(el)
			if err != nil {
				return nil, err
			}
			reel.MainSound = ref
		}
		if el := assetList.SelectElement("MainSubtitle"); el != nil {
			ref, err := readRef(el)
			if err != nil {
				return nil, err
			}
			reel.MainSubtitle = ref
		}
		for _, el := range assetList.SelectElements("MainClosedCaption") {
			ref, err := readRef(el)
			if err != nil {
				return nil, err
			}
			reel.ClosedCaptions = append(reel.ClosedCaptions, ref)
		}
		if el := assetList.SelectElement("AuxData"); el != nil {
			ref, err := readRef(el)
			if err != nil {
				return nil, err
			}
			reel.Atmos = ref
		}
		if el := assetList.SelectElement("MainMarkers"); el != nil {
			for _, markerEl := range el.SelectElements("Marker") {
				label := markerEl.SelectAttrValue("Label", "")
				var unit int
				fmt.Sscanf(markerEl.Text(), "%d", &unit)
				reel.MainMarkers = append(reel.MainMarkers, Marker{Kind: parseMarkerKind(label), EditUnit: unit})
			}
		}

		if i == 0 {
			if metaEl := assetList.SelectElement("CompositionMetadataAsset"); metaEl != nil {
				c.Metadata = readCompositionMetadata(metaEl)
			}
		}

		c.Reels = append(c.Reels, reel)
	}

	return c, nil
}

func parseMarkerKind(label string) MarkerKind {
	for k, v := range markerKindStrings {
		if v == label {
			return k
		}
	}
	return MarkerFFOC
}

func readRef(el *etree.Element) (*ReelAssetReference, error) {
	ref := &ReelAssetReference{}
	if idEl := el.SelectElement("Id"); idEl != nil {
		id, err := dcpid.Parse(idEl.Text())
		if err != nil {
			return nil, fmt.Errorf("cpl: %w", err)
		}
		ref.ID = id
	}
	if el2 := el.SelectElement("AnnotationText"); el2 != nil {
		ref.AnnotationText = el2.Text()
	}
	if el2 := el.SelectElement("EditRate"); el2 != nil {
		fmt.Sscanf(el2.Text(), "%d %d", &ref.EditRate.Numerator, &ref.EditRate.Denominator)
	}
	if el2 := el.SelectElement("IntrinsicDuration"); el2 != nil {
		fmt.Sscanf(el2.Text(), "%d", &ref.IntrinsicDuration)
	}
	if el2 := el.SelectElement("EntryPoint"); el2 != nil {
		var v int
		fmt.Sscanf(el2.Text(), "%d", &v)
		ref.EntryPoint = &v
	}
	if el2 := el.SelectElement("Duration"); el2 != nil {
		var v int
		fmt.Sscanf(el2.Text(), "%d", &v)
		ref.Duration = &v
	}
	if el2 := el.SelectElement("Hash"); el2 != nil {
		ref.Hash = el2.Text()
	}
	if el2 := el.SelectElement("KeyId"); el2 != nil {
		id, err := dcpid.Parse(el2.Text())
		if err != nil {
			return nil, fmt.Errorf("cpl: %w", err)
		}
		ref.KeyID = id
	}
	return ref, nil
}

func readCompositionMetadata(el *etree.Element) *CompositionMetadataAsset {
	m := &CompositionMetadataAsset{}
	if idEl := el.SelectElement("Id"); idEl != nil {
		if id, err := dcpid.Parse(idEl.Text()); err == nil {
			m.ID = id
		}
	}
	if e := el.SelectElement("ReleaseTerritory"); e != nil {
		m.ReleaseTerritory = e.Text()
	}
	if e := el.SelectElement("VersionNumber"); e != nil {
		fmt.Sscanf(e.Text(), "%d", &m.VersionNumber)
		m.VersionStatus = e.SelectAttrValue("Status", "")
	}
	if e := el.SelectElement("Chain"); e != nil {
		m.Chain = e.Text()
	}
	if e := el.SelectElement("Distributor"); e != nil {
		m.Distributor = e.Text()
	}
	if e := el.SelectElement("Facility"); e != nil {
		m.Facility = e.Text()
	}
	if e := el.SelectElement("Luminance"); e != nil {
		fmt.Sscanf(e.Text(), "%f", &m.Luminance)
	}
	if e := el.SelectElement("MainSoundConfiguration"); e != nil {
		m.MainSoundConfiguration = e.Text()
	}
	if e := el.SelectElement("MainSoundSampleRate"); e != nil {
		fmt.Sscanf(e.Text(), "%d", &m.MainSoundSampleRate)
	}
	if e := el.SelectElement("MainPictureStoredArea"); e != nil {
		if w := e.SelectElement("Width"); w != nil {
			fmt.Sscanf(w.Text(), "%d", &m.MainPictureStoredWidth)
		}
		if h := e.SelectElement("Height"); h != nil {
			fmt.Sscanf(h.Text(), "%d", &m.MainPictureStoredHeight)
		}
	}
	if e := el.SelectElement("MainPictureActiveArea"); e != nil {
		if w := e.SelectElement("Width"); w != nil {
			fmt.Sscanf(w.Text(), "%d", &m.MainPictureActiveWidth)
		}
		if h := e.SelectElement("Height"); h != nil {
			fmt.Sscanf(h.Text(), "%d", &m.MainPictureActiveHeight)
		}
	}
	if e := el.SelectElement("MainSubtitleLanguageList"); e != nil {
		for _, langEl := range e.SelectElements("MainSubtitleLanguage") {
			m.SubtitleLanguages = append(m.SubtitleLanguages, langEl.Text())
		}
	}
	if list := el.SelectElement("ExtensionMetadataList"); list != nil {
		if ext := list.SelectElement("ExtensionMetadata"); ext != nil {
			m.ExtensionScope = ext.SelectAttrValue("scope", "")
			if e := ext.SelectElement("Name"); e != nil {
				m.ExtensionName = e.Text()
			}
			if props := ext.SelectElement("PropertyList"); props != nil {
				if prop := props.SelectElement("Property"); prop != nil {
					if e := prop.SelectElement("Name"); e != nil {
						m.ExtensionPropertyName = e.Text()
					}
					if e := prop.SelectElement("Value"); e != nil {
						m.ExtensionPropertyValue = e.Text()
					}
				}
			}
		}
	}
	return m
}

// Equal reports whether c and other describe the same composition, within
// opts' tolerances (spec.md §6, testable property 2: P == read(write(P))).
// Note is called with a human-readable description of each mismatch found;
// pass nil to skip reporting (the comparison and its result are the same).
func (c *CPL) Equal(other *CPL, opts asset.EqualOptions, note func(string)) bool {
	equal := true
	fail := func(format string, args ...interface{}) {
		equal = false
		if note != nil {
			note(fmt.Sprintf(format, args...))
		}
	}

	if !c.ID.Equal(other.ID) {
		fail("cpl id mismatch: %s != %s", c.ID, other.ID)
	}
	if c.ContentTitleText != other.ContentTitleText {
		fail("content title mismatch: %q != %q", c.ContentTitleText, other.ContentTitleText)
	}
	if c.ContentKind != other.ContentKind {
		fail("content kind mismatch: %s != %s", c.ContentKind, other.ContentKind)
	}
	if !opts.AnnotationTextsCanDiffer && c.Annotation != other.Annotation {
		fail("annotation mismatch: %q != %q", c.Annotation, other.Annotation)
	}
	if len(c.Reels) != len(other.Reels) {
		fail("reel count mismatch: %d != %d", len(c.Reels), len(other.Reels))
		return equal
	}
	for i, reel := range c.Reels {
		if !reel.Equal(other.Reels[i], opts, note) {
			equal = false
		}
	}
	return equal
}

// Equal compares two reels' asset references, ignoring reel id (reel ids
// are regenerated freely by writers and carry no semantic meaning).
func (r *Reel) Equal(other *Reel, opts asset.EqualOptions, note func(string)) bool {
	equal := true
	fail := func(format string, args ...interface{}) {
		equal = false
		if note != nil {
			note(fmt.Sprintf(format, args...))
		}
	}

	if !refEqual(r.MainPicture, other.MainPicture, opts, note) {
		fail("main picture reference mismatch")
	}
	if !refEqual(r.MainSound, other.MainSound, opts, note) {
		fail("main sound reference mismatch")
	}
	if !refEqual(r.MainSubtitle, other.MainSubtitle, opts, note) {
		fail("main subtitle reference mismatch")
	}
	if !refEqual(r.Atmos, other.Atmos, opts, note) {
		fail("atmos reference mismatch")
	}
	if len(r.ClosedCaptions) != len(other.ClosedCaptions) {
		fail("closed caption count mismatch: %d != %d", len(r.ClosedCaptions), len(other.ClosedCaptions))
	} else {
		for i, cc := range r.ClosedCaptions {
			if !refEqual(cc, other.ClosedCaptions[i], opts, note) {
				fail("closed caption %d mismatch", i)
			}
		}
	}
	return equal
}

// refEqual compares two reel asset references for structural equality,
// tolerating a hash difference when opts.ReelHashesCanDiffer (a decrypted
// CPL's Hash fields are populated from a KDM and legitimately differ from
// the unencrypted original).
func refEqual(a, b *ReelAssetReference, opts asset.EqualOptions, note func(string)) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !a.ID.Equal(b.ID) {
		if note != nil {
			note(fmt.Sprintf("reference id mismatch: %s != %s", a.ID, b.ID))
		}
		return false
	}
	if a.IntrinsicDuration != b.IntrinsicDuration {
		if note != nil {
			note(fmt.Sprintf("intrinsic duration mismatch: %d != %d", a.IntrinsicDuration, b.IntrinsicDuration))
		}
		return false
	}
	if a.ActualDuration() != b.ActualDuration() {
		if note != nil {
			note(fmt.Sprintf("actual duration mismatch: %d != %d", a.ActualDuration(), b.ActualDuration()))
		}
		return false
	}
	if !opts.ReelHashesCanDiffer && a.Hash != "" && b.Hash != "" && a.Hash != b.Hash {
		if note != nil {
			note(fmt.Sprintf("hash mismatch: %s != %s", a.Hash, b.Hash))
		}
		return false
	}
	return true
}
