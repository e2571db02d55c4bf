package dcpsig

import (
	"testing"

	"github.com/mart-jansink/libdcp/pkg/dcpcert"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

func testChain(t *testing.T) *dcpcert.Chain {
	t.Helper()
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
	return chain
}

func testDoc() *xmlcodec.Document {
	doc := xmlcodec.NewDocument()
	root := doc.CreateElement("CompositionPlaylist")
	root.CreateElement("Id").SetText("urn:uuid:00000000-0000-0000-0000-000000000000")
	return doc
}

func TestSignThenVerifySucceeds(t *testing.T) {
	chain := testChain(t)
	doc := testDoc()

	if err := Sign(doc, xmlcodec.DialectSMPTE, chain); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(doc, chain); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyFailsAfterTampering(t *testing.T) {
	chain := testChain(t)
	doc := testDoc()

	if err := Sign(doc, xmlcodec.DialectSMPTE, chain); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	doc.Root().CreateElement("ContentTitleText").SetText("tampered")

	if err := Verify(doc, chain); err == nil {
		t.Fatal("expected Verify to fail after the signed document was tampered with")
	}
}

func TestVerifyWithEmbeddedChain(t *testing.T) {
	chain := testChain(t)
	doc := testDoc()

	if err := Sign(doc, xmlcodec.DialectInterop, chain); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(doc, nil); err != nil {
		t.Fatalf("Verify with embedded chain: %v", err)
	}
}

func TestSignFailsWithoutPrivateKey(t *testing.T) {
	chain := testChain(t)
	chain.PrivateKey = nil
	doc := testDoc()

	if err := Sign(doc, xmlcodec.DialectSMPTE, chain); err != ErrCouldNotSign {
		t.Fatalf("expected ErrCouldNotSign, got %v", err)
	}
}
