package pkl

import (
	"bytes"
	"testing"

	"github.com/mart-jansink/libdcp/pkg/dcpcert"
	"github.com/mart-jansink/libdcp/pkg/dcpid"
	"github.com/mart-jansink/libdcp/pkg/dcpsig"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	p := New(xmlcodec.DialectSMPTE)
	p.Annotation = "Test Package"
	p.Issuer = "OpenDCP"
	p.Creator = "OpenDCP"
	p.IssueDate = "2012-07-17T04:45:18+00:00"

	assetID := dcpid.New()
	p.AddEntry(Entry{
		AssetID: assetID,
		Hash:    "2jmj7l5rSw0yVb/vlWAYkK/YBwk=",
		Size:    1024,
		Type:    "application/mxf",
	})

	doc, err := p.Write(nil)
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
	if reloaded.Kind != xmlcodec.KindPKL {
		t.Fatalf("expected KindPKL, got %v", reloaded.Kind)
	}

	got, err := Read(reloaded)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.Issuer != p.Issuer || got.Creator != p.Creator || got.Annotation != p.Annotation {
		t.Errorf("metadata mismatch: got %+v", got)
	}
	if len(got.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got.Entries))
	}
	if !got.Entries[0].AssetID.Equal(assetID) {
		t.Errorf("asset id mismatch: got %v, want %v", got.Entries[0].AssetID, assetID)
	}
	if got.Entries[0].Size != 1024 {
		t.Errorf("size mismatch: got %d, want 1024", got.Entries[0].Size)
	}

	hash, ok := got.Hash(assetID)
	if !ok || hash != "2jmj7l5rSw0yVb/vlWAYkK/YBwk=" {
		t.Errorf("Hash lookup failed: got %q, ok=%v", hash, ok)
	}
	typ, ok := got.Type(assetID)
	if !ok || typ != "application/mxf" {
		t.Errorf("Type lookup failed: got %q, ok=%v", typ, ok)
	}
}

func TestWriteWithSignerSignsAndSetsSigned(t *testing.T) {
	chain, _, err := dcpcert.NewSelfSigned(dcpcert.SelfSignedConfig{
		Organisation:           "example.org",
		OrganisationalUnit:     "libdcp",
		RootCommonName:         "CA",
		IntermediateCommonName: "Intermediate",
		LeafCommonName:         "Leaf",
	})
	if err != nil {
		t.Fatalf("NewSelfSigned: %v", err)
	}

	p := New(xmlcodec.DialectSMPTE)
	p.AddEntry(Entry{AssetID: dcpid.New(), Hash: "abcd", Size: 1, Type: "application/mxf"})

	doc, err := p.Write(chain)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !p.Signed {
		t.Fatal("expected Write with a signer to set Signed")
	}
	if err := dcpsig.Verify(doc, chain); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	buf, err := doc.Canonicalize()
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	reloaded, err := xmlcodec.Load(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := Read(reloaded)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Signed {
		t.Error("expected Read to detect the Signature element and set Signed")
	}
}

func TestReadRejectsNonPackingList(t *testing.T) {
	doc := xmlcodec.NewDocument()
	doc.Kind = xmlcodec.KindCPL
	if _, err := Read(doc); err != ErrNotAPackingList {
		t.Errorf("expected ErrNotAPackingList, got %v", err)
	}
}
