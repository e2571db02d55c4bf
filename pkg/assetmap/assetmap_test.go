package assetmap

import (
	"bytes"
	"testing"

	"github.com/mart-jansink/libdcp/pkg/dcpid"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

func TestWriteThenReadRoundTripsSMPTE(t *testing.T) {
	am := New(xmlcodec.DialectSMPTE)
	am.Annotation = "Test Package"
	am.Issuer = "OpenDCP"
	am.Creator = "OpenDCP"
	am.IssueDate = "2012-07-17T04:45:18+00:00"

	pklID := dcpid.New()
	cplID := dcpid.New()
	am.Entries = []Entry{
		{AssetID: pklID, Path: "pkl_test.xml", PackingList: true},
		{AssetID: cplID, Path: "cpl_test.xml"},
	}

	doc, err := am.Write()
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
	if reloaded.Kind != xmlcodec.KindAssetMap {
		t.Fatalf("expected KindAssetMap, got %v", reloaded.Kind)
	}

	got, err := Read(reloaded)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	if !got.Entries[0].AssetID.Equal(pklID) || !got.Entries[0].PackingList {
		t.Errorf("expected first entry to be the flagged PKL: %+v", got.Entries[0])
	}
	if got.Entries[1].PackingList {
		t.Error("expected second entry not to be flagged as a packing list")
	}
	if got.Entries[1].Path != "cpl_test.xml" {
		t.Errorf("path mismatch: got %q", got.Entries[1].Path)
	}
}

func TestInteropPackingListFlagIsElementPresence(t *testing.T) {
	am := New(xmlcodec.DialectInterop)
	id := dcpid.New()
	am.Entries = []Entry{{AssetID: id, Path: "pkl.xml", PackingList: true}}

	doc, err := am.Write()
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
	got, err := Read(reloaded)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Entries[0].PackingList {
		t.Error("expected Interop PackingList presence to round-trip as true")
	}
}

func TestVolIndexRoundTrips(t *testing.T) {
	v := NewVolIndex(xmlcodec.DialectSMPTE)
	doc, err := v.Write()
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
	if reloaded.Kind != xmlcodec.KindVolIndex {
		t.Errorf("expected KindVolIndex, got %v", reloaded.Kind)
	}
}

func TestReadRejectsNonAssetMap(t *testing.T) {
	doc := xmlcodec.NewDocument()
	doc.Kind = xmlcodec.KindCPL
	if _, err := Read(doc); err != ErrNotAnAssetMap {
		t.Errorf("expected ErrNotAnAssetMap, got %v", err)
	}
}
