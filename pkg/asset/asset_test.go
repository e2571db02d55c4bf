package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

func writeTempEssence(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "essence.mxf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestPictureAssetHashIsCachedAfterFirstCall(t *testing.T) {
	path := writeTempEssence(t, []byte("picture essence bytes"))
	p := NewPictureAsset(false)
	p.SetPath(path)

	h1, err := p.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	// Mutate the file on disk; since the hash is cached, a second call
	// must return the same value rather than re-reading.
	if err := os.WriteFile(path, []byte("different bytes entirely"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h2, err := p.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not cached: got %q then %q", h1, h2)
	}
}

func TestSetPathInvalidatesCachedHash(t *testing.T) {
	p := NewPictureAsset(false)
	p.SetPath(writeTempEssence(t, []byte("a")))
	h1, err := p.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	p.SetPath(writeTempEssence(t, []byte("b")))
	h2, err := p.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h2 {
		t.Errorf("expected hash to change after SetPath, got same value %q", h1)
	}
}

func TestPictureAssetKindReflectsStereo(t *testing.T) {
	if NewPictureAsset(false).Kind() != KindPictureMono {
		t.Error("expected mono picture to report KindPictureMono")
	}
	if NewPictureAsset(true).Kind() != KindPictureStereo {
		t.Error("expected stereo picture to report KindPictureStereo")
	}
}

func TestPKLTypeTableMatchesSpecTable(t *testing.T) {
	cases := []struct {
		kind    Kind
		dialect xmlcodec.Dialect
		want    string
	}{
		{KindPictureMono, xmlcodec.DialectInterop, "application/mxf;asdcpKind=Picture"},
		{KindPictureMono, xmlcodec.DialectSMPTE, "application/mxf"},
		{KindSound, xmlcodec.DialectInterop, "application/mxf;asdcpKind=Sound"},
		{KindSubtitle, xmlcodec.DialectInterop, "text/xml"},
		{KindSubtitle, xmlcodec.DialectSMPTE, "application/mxf"},
		{KindFont, xmlcodec.DialectInterop, "application/ttf"},
		{KindAtmos, xmlcodec.DialectSMPTE, "application/mxf"},
	}
	for _, c := range cases {
		got, err := pklType(c.kind, c.dialect)
		if err != nil {
			t.Errorf("pklType(%v, %v): %v", c.kind, c.dialect, err)
			continue
		}
		if got != c.want {
			t.Errorf("pklType(%v, %v) = %q, want %q", c.kind, c.dialect, got, c.want)
		}
	}
}

func TestAtmosHasNoInteropPKLType(t *testing.T) {
	if _, err := pklType(KindAtmos, xmlcodec.DialectInterop); err != ErrNoPKLTypeForDialect {
		t.Errorf("expected ErrNoPKLTypeForDialect for Atmos/Interop, got %v", err)
	}
}

func TestFontHasNoSMPTEPKLType(t *testing.T) {
	if _, err := pklType(KindFont, xmlcodec.DialectSMPTE); err != ErrNoPKLTypeForDialect {
		t.Errorf("expected ErrNoPKLTypeForDialect for Font/SMPTE, got %v", err)
	}
}

func TestSoundAssetEqualToleratesSmallSampleRateDrift(t *testing.T) {
	a := NewSoundAsset()
	a.SetPath(writeTempEssence(t, []byte("sound")))
	a.SampleRate = 48000
	a.Channels = 6

	b := NewSoundAsset()
	b.id = a.id
	b.SetPath(a.Path())
	b.SampleRate = 48002
	b.Channels = 6

	if !a.Equal(b, EqualOptions{MaxAudioSampleError: 5}) {
		t.Error("expected sound assets within tolerance to be equal")
	}
	if a.Equal(b, EqualOptions{MaxAudioSampleError: 1}) {
		t.Error("expected sound assets outside tolerance to be unequal")
	}
}

func TestSubtitleAssetHashPrefersRawXML(t *testing.T) {
	s := NewSubtitleAsset(false)
	s.RawXML = []byte("<SubtitleReel/>")
	h, err := s.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h == "" {
		t.Error("expected non-empty hash from RawXML")
	}
}

func TestFactoryDispatchesByPKLType(t *testing.T) {
	a, err := Factory("application/mxf;asdcpKind=Picture", xmlcodec.DialectInterop, true)
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	if a.Kind() != KindPictureStereo {
		t.Errorf("expected stereo picture, got kind %v", a.Kind())
	}
}

func TestFactoryRejectsAmbiguousGenericMXF(t *testing.T) {
	_, err := Factory("application/mxf", xmlcodec.DialectSMPTE, false)
	if err != ErrAmbiguousMXFType {
		t.Errorf("expected ErrAmbiguousMXFType, got %v", err)
	}
}

func TestFactoryRejectsAmbiguousTextXml(t *testing.T) {
	_, err := Factory("text/xml", xmlcodec.DialectInterop, false)
	if err != ErrAmbiguousTextXmlType {
		t.Errorf("expected ErrAmbiguousTextXmlType, got %v", err)
	}
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := Factory("application/octet-stream", xmlcodec.DialectSMPTE, false)
	if err != ErrUnknownPklType {
		t.Errorf("expected ErrUnknownPklType, got %v", err)
	}
}

func TestFactoryForKindCoversAllKinds(t *testing.T) {
	kinds := []Kind{KindPictureMono, KindPictureStereo, KindSound, KindSubtitle, KindAtmos, KindClosedCaption, KindFont}
	for _, k := range kinds {
		a, err := FactoryForKind(k, xmlcodec.DialectSMPTE)
		if err != nil {
			t.Errorf("FactoryForKind(%v): %v", k, err)
			continue
		}
		if a.Kind() != k {
			t.Errorf("FactoryForKind(%v) produced asset with kind %v", k, a.Kind())
		}
	}
}

func TestFactoryForKindRespectsInteropDialect(t *testing.T) {
	a, err := FactoryForKind(KindClosedCaption, xmlcodec.DialectInterop)
	if err != nil {
		t.Fatalf("FactoryForKind: %v", err)
	}
	cc, ok := a.(*ClosedCaptionAsset)
	if !ok {
		t.Fatalf("expected *ClosedCaptionAsset, got %T", a)
	}
	if cc.SMPTE {
		t.Error("expected a non-SMPTE closed caption for an Interop dialect hint")
	}
}
