package verify

import (
	"github.com/mart-jansink/libdcp/pkg/cpl"
	"github.com/mart-jansink/libdcp/pkg/dcp"
	"github.com/mart-jansink/libdcp/pkg/pkl"
)

// annotationNotes checks PKL/CPL annotation coherence (spec.md §4.8
// "PKL/CPL annotation coherence"): a PKL referencing exactly one CPL
// must carry that CPL's ContentTitleText as its own AnnotationText, and
// a CPL's AnnotationText should equal its own ContentTitleText.
func annotationNotes(pkg *dcp.Package) []Note {
	var notes []Note

	for _, c := range pkg.CPLs {
		if c.Annotation != c.ContentTitleText {
			notes = append(notes, Note{Severity: SeverityWarning, Code: MismatchedCplAnnotationText, Text: c.ID.String()})
		}
	}

	for _, p := range pkg.PKLs {
		cplsInPKL := cplsReferencedBy(p, pkg.CPLs)
		if len(cplsInPKL) != 1 {
			continue
		}
		c := cplsInPKL[0]
		if p.Annotation != c.ContentTitleText {
			notes = append(notes, Note{Severity: SeverityWarning, Code: MismatchedPklAnnotationTextWithCpl, Text: p.ID.String()})
		}
	}

	return notes
}

func cplsReferencedBy(p *pkl.PKL, cpls []*cpl.CPL) []*cpl.CPL {
	var found []*cpl.CPL
	for _, entry := range p.Entries {
		for _, c := range cpls {
			if c.ID.Equal(entry.AssetID) {
				found = append(found, c)
			}
		}
	}
	return found
}
