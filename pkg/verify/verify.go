// Package verify implements the DCP conformance checker: structural,
// integrity, Bv2.1, subtitle-timing, and annotation-coherence rule
// families run over one or more loaded packages (spec.md C8).
package verify

import (
	"errors"

	"github.com/mart-jansink/libdcp/pkg/dcp"
	"github.com/mart-jansink/libdcp/pkg/pkl"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// Stage names one phase of a verification run, reported through Run's
// stageCB so a caller can show progress without polling package state.
type Stage string

const (
	StageLoad            Stage = "load"
	StageStructural      Stage = "structural"
	StageIntegrity       Stage = "integrity"
	StageBv21            Stage = "bv21"
	StageSubtitleTiming  Stage = "subtitle-timing"
	StageAnnotation      Stage = "annotation-coherence"
)

// Config controls the verifier's tolerances; spec.md §6's "Environment/
// config" — a single struct, no environment variables or global switches.
type Config struct {
	SchemaDir                     string
	IgnoreIncorrectPictureMxfType bool
	ProgressPollInterval          int
	DigestBufferSize              int
	// PictureFrameRate is the rate subtitle-timing heuristics assume
	// when a package's picture track cannot supply one; default 24.
	PictureFrameRate int
}

func (c Config) frameRate() int {
	if c.PictureFrameRate > 0 {
		return c.PictureFrameRate
	}
	return 24
}

// Run verifies every directory in dirs independently; a load failure in
// one never aborts the batch — it is recorded as a FailedRead note and
// the next directory proceeds (spec.md §4.8 "Failure semantics").
func Run(dirs []string, cfg Config, stageCB func(Stage), progressCB func(float64) bool) []Note {
	var notes []Note
	total := len(dirs)

	emit := func(n Note) bool {
		notes = append(notes, n)
		if progressCB != nil {
			if !progressCB(float64(len(notes)) / float64(max(total, 1))) {
				notes = append(notes, Note{Severity: SeverityWarning, Code: Cancelled, Text: "verification cancelled by caller"})
				return false
			}
		}
		return true
	}

	for _, dir := range dirs {
		if stageCB != nil {
			stageCB(StageLoad)
		}

		pkg, loadNotes, err := dcp.Read(dir, dcp.ReadOptions{
			IgnoreIncorrectPictureMxfType: cfg.IgnoreIncorrectPictureMxfType,
			SchemaDir:                     cfg.SchemaDir,
		})
		if err != nil {
			note := Note{Severity: SeverityError, Code: FailedRead, Text: err.Error(), File: dir}
			var parseErr *xmlcodec.ParseError
			switch {
			case errors.Is(err, dcp.ErrMissingAssetMap):
				note.Code = MissingAssetmap
			case errors.As(err, &parseErr):
				note.Code = InvalidXml
				note.File = parseErr.File
				note.Line = parseErr.Line
			}
			if !emit(note) {
				return notes
			}
			continue
		}
		for _, n := range loadNotes {
			if !emit(translateLoadNote(n, dir)) {
				return notes
			}
		}

		if stageCB != nil {
			stageCB(StageStructural)
		}
		for _, n := range structuralNotes(pkg) {
			if !emit(n) {
				return notes
			}
		}

		if stageCB != nil {
			stageCB(StageIntegrity)
		}
		for _, n := range integrityNotes(pkg) {
			if !emit(n) {
				return notes
			}
		}

		if stageCB != nil {
			stageCB(StageBv21)
		}
		if pkg.AssetMap.Dialect.String() == "smpte" {
			for _, n := range bv21Notes(pkg) {
				if !emit(n) {
					return notes
				}
			}
		} else {
			if !emit(Note{Severity: SeverityBv21Error, Code: InvalidStandard, Text: "package does not use the SMPTE standard", File: dir}) {
				return notes
			}
		}

		if stageCB != nil {
			stageCB(StageSubtitleTiming)
		}
		for _, n := range subtitleTimingNotes(pkg, cfg.frameRate()) {
			if !emit(n) {
				return notes
			}
		}

		if stageCB != nil {
			stageCB(StageAnnotation)
		}
		for _, n := range annotationNotes(pkg) {
			if !emit(n) {
				return notes
			}
		}
	}

	return notes
}

func translateLoadNote(n dcp.Note, dir string) Note {
	return Note{Severity: SeverityWarning, Code: Code(n.Code), Text: n.Text, File: pickFile(n.File, dir)}
}

func pickFile(file, fallback string) string {
	if file != "" {
		return file
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// pklEntryFor searches every PKL in pkg for the entry describing id,
// returning ok=false if no PKL references it.
func pklEntryFor(pkls []*pkl.PKL, idHex string) (pkl.Entry, bool) {
	for _, p := range pkls {
		for _, e := range p.Entries {
			if e.AssetID.Hex() == idHex {
				return e, true
			}
		}
	}
	return pkl.Entry{}, false
}
