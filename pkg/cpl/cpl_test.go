package cpl

import (
	"bytes"
	"testing"

	"github.com/mart-jansink/libdcp/pkg/asset"
	"github.com/mart-jansink/libdcp/pkg/dcpid"
	"github.com/mart-jansink/libdcp/pkg/kdm"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

func TestContentKindStringRoundTrips(t *testing.T) {
	for k, s := range contentKindStrings {
		got, err := ParseContentKind(s)
		if err != nil {
			t.Fatalf("ParseContentKind(%q): %v", s, err)
		}
		if got != k {
			t.Errorf("round trip mismatch for %q: got %v want %v", s, got, k)
		}
	}
	if _, err := ParseContentKind("FEATURE"); err != nil {
		t.Errorf("expected case-insensitive parse to succeed: %v", err)
	}
	if _, err := ParseContentKind("bogus"); err != ErrUnknownContentKind {
		t.Errorf("expected ErrUnknownContentKind, got %v", err)
	}
}

func TestReelAssetReferenceActualDuration(t *testing.T) {
	entry := 10
	ref := &ReelAssetReference{IntrinsicDuration: 100, EntryPoint: &entry}
	if got := ref.ActualDuration(); got != 90 {
		t.Errorf("expected actual duration 90, got %d", got)
	}

	duration := 50
	ref.Duration = &duration
	if got := ref.ActualDuration(); got != 50 {
		t.Errorf("explicit duration should win, got %d", got)
	}

	bare := &ReelAssetReference{IntrinsicDuration: 100}
	if got := bare.ActualDuration(); got != 100 {
		t.Errorf("expected full intrinsic duration with no entry point, got %d", got)
	}
}

func TestReelAssetReferenceValidateRejectsOutOfRangeEntryPoint(t *testing.T) {
	entry := 200
	ref := &ReelAssetReference{IntrinsicDuration: 100, EntryPoint: &entry}
	if err := ref.Validate(); err != ErrInvalidEntryPoint {
		t.Errorf("expected ErrInvalidEntryPoint, got %v", err)
	}
}

func TestNewRequiresAtLeastOneContentVersion(t *testing.T) {
	c := New("Test Feature", ContentKindFeature, xmlcodec.DialectSMPTE)
	if len(c.ContentVersions) != 1 {
		t.Fatalf("expected New to seed a ContentVersion, got %d", len(c.ContentVersions))
	}

	c.ContentVersions = nil
	if err := c.Validate(); err != ErrNoContentVersion {
		t.Errorf("expected ErrNoContentVersion, got %v", err)
	}
}

func TestValidatePropagatesReelReferenceErrors(t *testing.T) {
	c := New("Test Feature", ContentKindFeature, xmlcodec.DialectSMPTE)
	entry := 200
	reel := NewReel()
	reel.MainPicture = &ReelAssetReference{IntrinsicDuration: 100, EntryPoint: &entry}
	c.AddReel(reel)

	if err := c.Validate(); err != ErrInvalidEntryPoint {
		t.Errorf("expected ErrInvalidEntryPoint to propagate, got %v", err)
	}
}

func buildTestCPL(dialect xmlcodec.Dialect) *CPL {
	c := New("Test Feature", ContentKindFeature, dialect)
	c.Issuer = "OpenDCP"
	c.Creator = "OpenDCP"
	c.IssueDate = "2012-07-17T04:45:18+00:00"

	reel := NewReel()
	reel.MainPicture = &ReelAssetReference{
		ID:                dcpid.New(),
		EditRate:          asset.EditRate{Numerator: 24, Denominator: 1},
		IntrinsicDuration: 200,
	}
	reel.MainSound = &ReelAssetReference{
		ID:                dcpid.New(),
		EditRate:          asset.EditRate{Numerator: 24, Denominator: 1},
		IntrinsicDuration: 200,
	}
	reel.MainMarkers = []Marker{{Kind: MarkerFFOC, EditUnit: 0}, {Kind: MarkerLFOC, EditUnit: 199}}
	c.AddReel(reel)

	if dialect == xmlcodec.DialectSMPTE {
		c.Metadata = &CompositionMetadataAsset{
			ID:                  dcpid.New(),
			VersionNumber:       1,
			MainSoundSampleRate: 48000,
		}
	}
	return c
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	c := buildTestCPL(xmlcodec.DialectSMPTE)

	doc, err := c.Write(nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	var buf bytes.Buffer
	if err := doc.WriteIndented(&buf); err != nil {
		t.Fatalf("WriteIndented: %v", err)
	}

	reloaded, err := xmlcodec.Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Kind != xmlcodec.KindCPL {
		t.Fatalf("expected KindCPL, got %v", reloaded.Kind)
	}

	got, err := Read(reloaded)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var notes []string
	if !c.Equal(got, asset.EqualOptions{}, func(s string) { notes = append(notes, s) }) {
		t.Errorf("round trip mismatch: %v", notes)
	}
}

func TestReadRejectsNonCPL(t *testing.T) {
	doc := xmlcodec.NewDocument()
	doc.Kind = xmlcodec.KindPKL
	if _, err := Read(doc); err != ErrNotACPL {
		t.Errorf("expected ErrNotACPL, got %v", err)
	}
}

func TestCompositionMetadataOnlyEmittedForSMPTEFirstReel(t *testing.T) {
	c := buildTestCPL(xmlcodec.DialectInterop)
	c.Metadata = &CompositionMetadataAsset{ID: dcpid.New(), VersionNumber: 1}

	doc, err := c.Write(nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	root := doc.Root()
	reelList := root.SelectElement("ReelList")
	reelEl := reelList.SelectElements("Reel")[0]
	assetList := reelEl.SelectElement("AssetList")
	if el := assetList.SelectElement("CompositionMetadataAsset"); el != nil {
		t.Error("expected no CompositionMetadataAsset under Interop dialect")
	}
}

func TestReelSlotEmissionOrder(t *testing.T) {
	c := buildTestCPL(xmlcodec.DialectSMPTE)
	reel := c.Reels[0]
	reel.MainSubtitle = &ReelAssetReference{ID: dcpid.New(), IntrinsicDuration: 200}
	reel.Atmos = &ReelAssetReference{ID: dcpid.New(), IntrinsicDuration: 200}
	reel.ClosedCaptions = []*ReelAssetReference{{ID: dcpid.New(), IntrinsicDuration: 200}}

	doc, err := c.Write(nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	assetList := doc.Root().SelectElement("ReelList").SelectElements("Reel")[0].SelectElement("AssetList")

	var order []string
	for _, child := range assetList.ChildElements() {
		order = append(order, child.Tag)
	}

	expectFirst := []string{"MainPicture", "MainSound", "MainSubtitle", "MainClosedCaption", "AuxData", "MainMarkers"}
	for i, tag := range expectFirst {
		if i >= len(order) || order[i] != tag {
			t.Fatalf("expected slot %d to be %s, got order %v", i, tag, order)
		}
	}
}

func TestAddKDMIgnoresMismatchedCPLID(t *testing.T) {
	c := buildTestCPL(xmlcodec.DialectSMPTE)
	before := c.Reels[0].MainPicture.Hash
	c.AddKDM(kdm.DecryptedKDM{CPLID: dcpid.New()})
	if c.Reels[0].MainPicture.Hash != before {
		t.Error("expected AddKDM to no-op for a KDM targeting a different CPL")
	}
}
