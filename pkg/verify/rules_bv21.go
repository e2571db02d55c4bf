package verify

import (
	"fmt"
	"math"
	"os"
	"regexp"

	"github.com/mart-jansink/libdcp/pkg/asset"
	"github.com/mart-jansink/libdcp/pkg/cpl"
	"github.com/mart-jansink/libdcp/pkg/dcp"
	"github.com/mart-jansink/libdcp/pkg/pkl"
)

// bv21ValidSizes is the closed set of SMPTE-RDD-52:2020-Bv2.1 picture
// frame sizes (spec.md §4.8).
var bv21ValidSizes = map[asset.FrameSize]bool{
	{Width: 2048, Height: 858}:  true,
	{Width: 1998, Height: 1080}: true,
	{Width: 4096, Height: 1716}: true,
	{Width: 3996, Height: 2160}: true,
}

var bv21_2kRates = map[int]bool{24: true, 25: true, 48: true}

// rfc5646Loose accepts the common language-tag shapes without
// implementing the full BCP-47 grammar (out of scope per spec.md §1) —
// primary subtag of 2-3 letters, optional region/script/variant subtags.
var rfc5646Loose = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

const (
	maxTimedTextBytes     = 115 * 1024 * 1024
	maxTimedTextFontBytes = 10 * 1024 * 1024
	maxClosedCaptionBytes = 256 * 1024
)

// bv21Notes checks the SMPTE-only Bv2.1 application-profile constraints
// (spec.md §4.8 "Bv2.1 constraints").
func bv21Notes(pkg *dcp.Package) []Note {
	var notes []Note

	for _, c := range pkg.CPLs {
		notes = append(notes, picturePlusAudioNotes(c)...)
		notes = append(notes, subtitleLanguageNotes(c)...)
		notes = append(notes, timedTextSizeNotes(c)...)
		notes = append(notes, reelConsistencyNotes(c)...)
		notes = append(notes, markerNotes(c)...)
		notes = append(notes, cplMetadataNotes(c)...)
		notes = append(notes, encryptionNotes(c)...)
	}
	notes = append(notes, pklEncryptionNotes(pkg)...)

	return notes
}

func picturePlusAudioNotes(c *cpl.CPL) []Note {
	var notes []Note
	for _, reel := range c.Reels {
		if reel.MainPicture == nil || reel.MainPicture.Resolved == nil {
			continue
		}
		pic, ok := reel.MainPicture.Resolved.(*asset.PictureAsset)
		if !ok {
			continue
		}
		if !bv21ValidSizes[pic.FrameSize] {
			notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidPictureSizeInPixels, Text: fmt.Sprintf("%dx%d", pic.FrameSize.Width, pic.FrameSize.Height)})
		}

		fps := 0
		if pic.EditRate.Denominator != 0 {
			fps = pic.EditRate.Numerator / pic.EditRate.Denominator
		}
		is4K := pic.FrameSize.Width >= 3996
		if is4K {
			if fps != 24 {
				notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidPictureFrameRateFor4k, Text: fmt.Sprintf("%d", fps)})
			}
			if pic.Stereo {
				notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidPictureAssetResolutionFor3d, Text: reel.MainPicture.ID.String()})
			}
		} else if !bv21_2kRates[fps] {
			notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidPictureFrameRateFor2k, Text: fmt.Sprintf("%d", fps)})
		}

		if info, err := os.Stat(pic.Path()); err == nil && fps > 0 && pic.IntrinsicFrameCount > 0 {
			avgFrameBytes := float64(info.Size()) / float64(pic.IntrinsicFrameCount)
			errorThreshold := math.Round(250e6 / (8 * float64(fps)))
			warnThreshold := math.Round(230e6 / (8 * float64(fps)))
			if avgFrameBytes > errorThreshold {
				notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidPictureFrameSizeInBytes, Text: reel.MainPicture.ID.String()})
			} else if avgFrameBytes > warnThreshold {
				notes = append(notes, Note{Severity: SeverityWarning, Code: NearlyInvalidPictureFrameSizeInBytes, Text: reel.MainPicture.ID.String()})
			}
		}

		if reel.MainSound != nil && reel.MainSound.Resolved != nil {
			if snd, ok := reel.MainSound.Resolved.(*asset.SoundAsset); ok {
				if snd.SampleRate != 48000 {
					notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidSoundFrameRate, Text: fmt.Sprintf("%d", snd.SampleRate)})
				}
				if snd.Language != "" && !rfc5646Loose.MatchString(snd.Language) {
					notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidLanguage, Text: snd.Language})
				}
			}
		}
	}
	return notes
}

func subtitleLanguageNotes(c *cpl.CPL) []Note {
	var notes []Note
	var languages []string
	for _, reel := range c.Reels {
		if reel.MainSubtitle == nil || reel.MainSubtitle.Resolved == nil {
			continue
		}
		sub, ok := reel.MainSubtitle.Resolved.(*asset.SubtitleAsset)
		if !ok {
			continue
		}
		if sub.Language == "" {
			notes = append(notes, Note{Severity: SeverityBv21Error, Code: MissingSubtitleLanguage, Text: reel.MainSubtitle.ID.String()})
		} else {
			languages = append(languages, sub.Language)
			if !rfc5646Loose.MatchString(sub.Language) {
				notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidLanguage, Text: sub.Language})
			}
		}
		if sub.StartTime != (asset.Timecode{}) {
			notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidSubtitleStartTime, Text: reel.MainSubtitle.ID.String()})
		}
	}
	for i := 1; i < len(languages); i++ {
		if languages[i] != languages[0] {
			notes = append(notes, Note{Severity: SeverityBv21Error, Code: MismatchedSubtitleLanguages})
			break
		}
	}
	return notes
}

func timedTextSizeNotes(c *cpl.CPL) []Note {
	var notes []Note
	for _, reel := range c.Reels {
		if reel.MainSubtitle != nil && reel.MainSubtitle.Resolved != nil {
			if sub, ok := reel.MainSubtitle.Resolved.(*asset.SubtitleAsset); ok {
				if len(sub.RawXML) > maxTimedTextBytes {
					notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidTimedTextSizeInBytes, Text: reel.MainSubtitle.ID.String()})
				}
				var fontBytes int
				for _, f := range sub.FontData {
					fontBytes += len(f)
				}
				if fontBytes > maxTimedTextFontBytes {
					notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidTimedTextFontSizeInBytes, Text: reel.MainSubtitle.ID.String()})
				}
			}
		}
		for _, cc := range reel.ClosedCaptions {
			if cc.Resolved == nil {
				continue
			}
			ccAsset, ok := cc.Resolved.(*asset.ClosedCaptionAsset)
			if !ok {
				continue
			}
			if len(ccAsset.RawXML) > maxClosedCaptionBytes {
				notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidClosedCaptionXmlSizeInBytes, Text: cc.ID.String()})
			}
		}
	}
	return notes
}

// reelConsistencyNotes checks the per-CPL uniformity rules that only make
// sense across a whole reel list: subtitle presence, closed-caption
// counts, and actual duration must agree reel-to-reel (spec.md §4.8
// "reel consistency").
func reelConsistencyNotes(c *cpl.CPL) []Note {
	var notes []Note
	if len(c.Reels) == 0 {
		return notes
	}

	hasSubtitle := c.Reels[0].MainSubtitle != nil
	ccCount := len(c.Reels[0].ClosedCaptions)
	mismatchedSubtitle := false
	mismatchedCC := false

	for _, reel := range c.Reels[1:] {
		if (reel.MainSubtitle != nil) != hasSubtitle {
			mismatchedSubtitle = true
		}
		if len(reel.ClosedCaptions) != ccCount {
			mismatchedCC = true
		}
	}
	if mismatchedSubtitle {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: MissingMainSubtitleFromSomeReels, Text: c.ID.String()})
	}
	if mismatchedCC {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: MismatchedClosedCaptionAssetCounts, Text: c.ID.String()})
	}

	for _, reel := range c.Reels {
		refs := c.References(reel)
		if len(refs) == 0 {
			continue
		}
		want := refs[0].ActualDuration()
		for _, ref := range refs[1:] {
			if ref.ActualDuration() != want {
				notes = append(notes, Note{Severity: SeverityBv21Error, Code: MismatchedAssetDuration, Text: reel.ID.String()})
				break
			}
		}
	}

	return notes
}

// markerNotes checks the FFEC/FFMC/FFOC/LFOC marker rules that apply
// only to feature content (spec.md §4.8 "markers").
func markerNotes(c *cpl.CPL) []Note {
	var notes []Note
	if c.ContentKind != cpl.ContentKindFeature || len(c.Reels) == 0 {
		return notes
	}

	firstReel := c.Reels[0]
	lastReel := c.Reels[len(c.Reels)-1]

	var haveFFEC, haveFFMC, haveFFOC, haveLFOC bool
	var ffocUnit, lfocUnit int

	for _, m := range firstReel.MainMarkers {
		switch m.Kind {
		case cpl.MarkerFFEC:
			haveFFEC = true
		case cpl.MarkerFFMC:
			haveFFMC = true
		case cpl.MarkerFFOC:
			haveFFOC = true
			ffocUnit = m.EditUnit
		}
	}
	for _, m := range lastReel.MainMarkers {
		if m.Kind == cpl.MarkerLFOC {
			haveLFOC = true
			lfocUnit = m.EditUnit
		}
	}

	if !haveFFEC {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: MissingFfecInFeature, Text: c.ID.String()})
	}
	if !haveFFMC {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: MissingFfmcInFeature, Text: c.ID.String()})
	}
	if !haveFFOC {
		notes = append(notes, Note{Severity: SeverityWarning, Code: MissingFfoc, Text: c.ID.String()})
	} else if ffocUnit != 1 {
		notes = append(notes, Note{Severity: SeverityWarning, Code: IncorrectFfoc, Text: c.ID.String()})
	}

	if lastRefs := c.References(lastReel); len(lastRefs) > 0 {
		wantLFOC := lastRefs[0].ActualDuration() - 1
		if !haveLFOC {
			notes = append(notes, Note{Severity: SeverityWarning, Code: MissingLfoc, Text: c.ID.String()})
		} else if lfocUnit != wantLFOC {
			notes = append(notes, Note{Severity: SeverityWarning, Code: IncorrectLfoc, Text: c.ID.String()})
		}
	}

	return notes
}

// cplMetadataNotes checks CompositionMetadataAsset presence and the
// Bv2.1-mandated extension metadata block (spec.md §4.8 "CPL metadata").
func cplMetadataNotes(c *cpl.CPL) []Note {
	var notes []Note
	if c.Metadata == nil {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: MissingCplMetadata, Text: c.ID.String()})
		return notes
	}
	if c.Metadata.VersionNumber == 0 {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: MissingCplMetadataVersionNumber, Text: c.ID.String()})
	}
	if c.Metadata.ExtensionName == "" || c.Metadata.ExtensionPropertyValue == "" {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: MissingExtensionMetadata, Text: c.ID.String()})
	} else if c.Metadata.ExtensionPropertyValue != "SMPTE-RDD-52:2020-Bv2.1" {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: InvalidExtensionMetadata, Text: c.Metadata.ExtensionPropertyValue})
	}
	if c.Annotation == "" {
		notes = append(notes, Note{Severity: SeverityBv21Error, Code: MissingCplAnnotationText, Text: c.ID.String()})
	} else if c.Annotation != c.ContentTitleText {
		notes = append(notes, Note{Severity: SeverityWarning, Code: MismatchedCplAnnotationText, Text: c.ID.String()})
	}
	return notes
}

// encryptionNotes checks the all-or-nothing encryption invariant: a CPL
// referencing any encrypted essence must have every essence asset
// encrypted, and must itself be signed (spec.md §4.8 "encryption").
func encryptionNotes(c *cpl.CPL) []Note {
	var notes []Note
	var sawEncrypted, sawPlain bool

	for _, reel := range c.Reels {
		for _, ref := range c.References(reel) {
			if ref == nil || ref.Resolved == nil {
				continue
			}
			enc, ok := encryptedFlag(ref.Resolved)
			if !ok {
				continue
			}
			if enc {
				sawEncrypted = true
			} else {
				sawPlain = true
			}
		}
	}

	if sawEncrypted && sawPlain {
		notes = append(notes, Note{Severity: SeverityError, Code: PartiallyEncrypted, Text: c.ID.String()})
	}
	if sawEncrypted && !c.Signed {
		notes = append(notes, Note{Severity: SeverityError, Code: UnsignedCplWithEncryptedContent, Text: c.ID.String()})
	}

	return notes
}

func encryptedFlag(a asset.Asset) (bool, bool) {
	switch v := a.(type) {
	case *asset.PictureAsset:
		return v.Encrypted, true
	case *asset.SoundAsset:
		return v.Encrypted, true
	case *asset.AtmosAsset:
		return v.Encrypted, true
	default:
		return false, false
	}
}

// pklEncryptionNotes is the PKL-side counterpart of encryptionNotes: a
// PKL describing any encrypted asset must itself be signed (spec.md
// §4.8 "encryption" — "CPLs and PKLs referencing encrypted content must
// be signed"), mirroring the original's pkl_has_encrypted_assets check.
func pklEncryptionNotes(pkg *dcp.Package) []Note {
	var notes []Note
	for _, p := range pkg.PKLs {
		if p.Signed || !pklHasEncryptedAssets(p, pkg) {
			continue
		}
		notes = append(notes, Note{Severity: SeverityError, Code: UnsignedPklWithEncryptedContent, Text: p.ID.String()})
	}
	return notes
}

// pklHasEncryptedAssets reports whether any asset p.Entries describes
// resolves, via pkg.Assets, to an essence asset with Encrypted set.
func pklHasEncryptedAssets(p *pkl.PKL, pkg *dcp.Package) bool {
	for _, e := range p.Entries {
		for _, a := range pkg.Assets {
			if !a.ID().Equal(e.AssetID) {
				continue
			}
			if enc, ok := encryptedFlag(a); ok && enc {
				return true
			}
			break
		}
	}
	return false
}
