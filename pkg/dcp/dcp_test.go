package dcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mart-jansink/libdcp/pkg/asset"
	"github.com/mart-jansink/libdcp/pkg/cpl"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

func writeTempEssence(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func buildMinimalCPL(t *testing.T, dir string) *cpl.CPL {
	t.Helper()
	picture := asset.NewPictureAsset(false)
	picture.EditRate = asset.EditRate{Numerator: 24, Denominator: 1}
	picture.IntrinsicFrameCount = 24
	picture.SetPath(writeTempEssence(t, dir, "picture.mxf", 4096))

	sound := asset.NewSoundAsset()
	sound.EditRate = asset.EditRate{Numerator: 24, Denominator: 1}
	sound.SampleRate = 48000
	sound.Channels = 2
	sound.SetPath(writeTempEssence(t, dir, "sound.mxf", 2048))

	c := cpl.New("Minimal Feature", cpl.ContentKindFeature, xmlcodec.DialectSMPTE)
	c.Issuer = "OpenDCP"
	c.Creator = "OpenDCP"
	c.IssueDate = "2012-07-17T04:45:18+00:00"

	reel := cpl.NewReel()
	reel.MainPicture = &cpl.ReelAssetReference{
		ID:                picture.ID(),
		EditRate:          picture.EditRate,
		IntrinsicDuration: picture.IntrinsicFrameCount,
		Resolved:          picture,
	}
	reel.MainSound = &cpl.ReelAssetReference{
		ID:                sound.ID(),
		EditRate:          sound.EditRate,
		IntrinsicDuration: picture.IntrinsicFrameCount,
		Resolved:          sound,
	}
	c.AddReel(reel)
	return c
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	c := buildMinimalCPL(t, dir)

	pkg, err := Write(dir, xmlcodec.DialectSMPTE, WriteMeta{
		Issuer:     "OpenDCP",
		Creator:    "OpenDCP",
		IssueDate:  "2012-07-17T04:45:18+00:00",
		Annotation: "Minimal Feature",
	}, []*cpl.CPL{c}, nil, "")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "ASSETMAP.xml")); err != nil {
		t.Errorf("expected ASSETMAP.xml to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "VOLINDEX.xml")); err != nil {
		t.Errorf("expected VOLINDEX.xml to exist: %v", err)
	}

	reloaded, notes, err := Read(dir, ReadOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, n := range notes {
		t.Logf("note: %s", n)
	}

	var mismatches []string
	if !pkg.Equal(reloaded, asset.EqualOptions{}, func(s string) { mismatches = append(mismatches, s) }) {
		t.Errorf("round trip mismatch: %v", mismatches)
	}
	if len(reloaded.CPLs) != 1 {
		t.Fatalf("expected 1 CPL, got %d", len(reloaded.CPLs))
	}
	reel := reloaded.CPLs[0].Reels[0]
	if reel.MainPicture.Resolved == nil {
		t.Error("expected MainPicture reference to resolve to an asset")
	}
	if reel.MainSound.Resolved == nil {
		t.Error("expected MainSound reference to resolve to an asset")
	}
}

func TestReadFailsWithoutAssetMap(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Read(dir, ReadOptions{}); err != ErrMissingAssetMap {
		t.Errorf("expected ErrMissingAssetMap, got %v", err)
	}
}
