package verify

import (
	"os"

	"github.com/mart-jansink/libdcp/pkg/dcp"
)

// structuralNotes checks every loaded asset has a non-empty path and an
// on-disk file to back it (spec.md §4.8 "Structural").
func structuralNotes(pkg *dcp.Package) []Note {
	var notes []Note
	for _, a := range pkg.Assets {
		if a.Path() == "" {
			notes = append(notes, Note{Severity: SeverityError, Code: EmptyAssetPath, Text: a.ID().String()})
			continue
		}
		if _, err := os.Stat(a.Path()); err != nil {
			notes = append(notes, Note{Severity: SeverityError, Code: MissingAsset, Text: a.ID().String(), File: a.Path()})
		}
	}
	return notes
}
