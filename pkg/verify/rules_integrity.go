package verify

import (
	"os"

	"github.com/mart-jansink/libdcp/pkg/asset"
	"github.com/mart-jansink/libdcp/pkg/dcp"
	"github.com/mart-jansink/libdcp/pkg/digest"
)

// integrityNotes implements spec.md §4.8's three integrity checks:
// per-asset SHA-1 recompute vs PKL, CPL's copy of each asset hash vs
// PKL's, and the CPL file's own recomputed hash vs its PKL entry.
func integrityNotes(pkg *dcp.Package) []Note {
	var notes []Note

	for _, a := range pkg.Assets {
		entry, ok := pklEntryFor(pkg.PKLs, a.ID().Hex())
		if !ok {
			continue
		}
		recomputed, err := digest.File(a.Path(), 0, nil)
		if err != nil {
			continue
		}
		if recomputed != entry.Hash {
			notes = append(notes, incorrectHashNote(a))
		}
	}

	for _, c := range pkg.CPLs {
		for _, reel := range c.Reels {
			for _, ref := range c.References(reel) {
				if ref == nil || ref.Hash == "" || ref.Resolved == nil {
					continue
				}
				entry, ok := pklEntryFor(pkg.PKLs, ref.ID.Hex())
				if !ok || ref.Hash == entry.Hash {
					continue
				}
				notes = append(notes, mismatchedHashNote(ref.Resolved))
			}
		}

		entry, ok := pklEntryFor(pkg.PKLs, c.ID.Hex())
		if !ok {
			continue
		}
		cplPath := entry.OriginalFileName
		if cplPath == "" {
			continue
		}
		raw, err := os.ReadFile(inPackageDir(pkg, cplPath))
		if err != nil {
			continue
		}
		if digest.Bytes(raw) != entry.Hash {
			notes = append(notes, Note{Severity: SeverityError, Code: MismatchedCplHashes, Text: c.ID.String(), File: cplPath})
		}
	}

	return notes
}

func inPackageDir(pkg *dcp.Package, name string) string {
	return pkg.Dir + string(os.PathSeparator) + name
}

func incorrectHashNote(a asset.Asset) Note {
	switch a.Kind() {
	case asset.KindPictureMono, asset.KindPictureStereo:
		return Note{Severity: SeverityError, Code: IncorrectPictureHash, Text: a.ID().String()}
	case asset.KindSound:
		return Note{Severity: SeverityError, Code: IncorrectSoundHash, Text: a.ID().String()}
	default:
		return Note{Severity: SeverityError, Code: MissingHash, Text: a.ID().String()}
	}
}

func mismatchedHashNote(a asset.Asset) Note {
	switch a.Kind() {
	case asset.KindPictureMono, asset.KindPictureStereo:
		return Note{Severity: SeverityError, Code: MismatchedPictureHashes, Text: a.ID().String()}
	case asset.KindSound:
		return Note{Severity: SeverityError, Code: MismatchedSoundHashes, Text: a.ID().String()}
	default:
		return Note{Severity: SeverityError, Code: MissingHash, Text: a.ID().String()}
	}
}
