package asset

import (
	"github.com/mart-jansink/libdcp/pkg/digest"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// FontAsset is an embedded TrueType font referenced by an Interop
// subtitle asset (spec.md §4.5 — Font has no SMPTE PKL type, since SMPTE
// subtitles carry fonts inside their own MXF wrapper).
type FontAsset struct {
	base
	RawData []byte
}

// NewFontAsset constructs a font asset with a fresh identifier.
func NewFontAsset() *FontAsset {
	return &FontAsset{base: newBase("")}
}

func (f *FontAsset) Kind() Kind { return KindFont }

// Hash prefers RawData, since a font asset loaded from a loose .ttf file
// alongside an Interop subtitle has no other identity worth hashing.
func (f *FontAsset) Hash() (string, error) {
	if len(f.RawData) > 0 {
		return digest.Bytes(f.RawData), nil
	}
	return f.hash()
}

func (f *FontAsset) PKLType(dialect xmlcodec.Dialect) (string, error) {
	return pklType(KindFont, dialect)
}

func (f *FontAsset) Equal(other Asset, opts EqualOptions) bool {
	o, ok := other.(*FontAsset)
	if !ok {
		return false
	}
	if !f.id.Equal(o.id) {
		return false
	}
	if opts.ReelHashesCanDiffer {
		return true
	}
	ha, _ := f.Hash()
	hb, _ := o.Hash()
	return ha == hb
}
