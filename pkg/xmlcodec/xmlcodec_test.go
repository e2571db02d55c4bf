package xmlcodec

import (
	"strings"
	"testing"
)

func TestLoadResolvesSMPTECPL(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<CompositionPlaylist xmlns="http://www.smpte-ra.org/schemas/429-7/2006/CPL">
  <Id>urn:uuid:00000000-0000-0000-0000-000000000000</Id>
</CompositionPlaylist>`

	doc, err := Load(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Dialect != DialectSMPTE {
		t.Errorf("expected SMPTE dialect, got %s", doc.Dialect)
	}
	if doc.Kind != KindCPL {
		t.Errorf("expected KindCPL, got %v", doc.Kind)
	}
}

func TestLoadUnrecognizedNamespace(t *testing.T) {
	xml := `<?xml version="1.0"?><Root xmlns="http://example.com/not-a-dcp-namespace"/>`

	_, err := Load(strings.NewReader(xml))
	if err != ErrUnrecognizedNamespace {
		t.Fatalf("expected ErrUnrecognizedNamespace, got %v", err)
	}
}

func TestNamespaceForRoundTrips(t *testing.T) {
	ns := NamespaceFor(KindAssetMap, DialectSMPTE)
	if ns == "" {
		t.Fatal("expected a namespace for SMPTE ASSETMAP")
	}

	xml := `<?xml version="1.0"?><AssetMap xmlns="` + ns + `"/>`
	doc, err := Load(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Kind != KindAssetMap || doc.Dialect != DialectSMPTE {
		t.Errorf("round trip mismatch: kind=%v dialect=%v", doc.Kind, doc.Dialect)
	}
}

func TestLoadDisambiguatesSharedSMPTENamespaceByTag(t *testing.T) {
	ns := NamespaceFor(KindAssetMap, DialectSMPTE)
	xml := `<?xml version="1.0"?><VolumeIndex xmlns="` + ns + `"/>`

	doc, err := Load(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Kind != KindVolIndex {
		t.Errorf("expected KindVolIndex despite shared namespace, got %v", doc.Kind)
	}
}
