package asset

import (
	"github.com/mart-jansink/libdcp/pkg/digest"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// ClosedCaptionAsset is a closed-caption track: either an Interop XML
// sidecar (same Timed Text schema a subtitle uses) or a SMPTE MXF-wrapped
// track file. Unlike MainSubtitle, a reel may reference several of these
// at once, one per language (spec.md §4.6's ClosedCaptions slot).
type ClosedCaptionAsset struct {
	base
	SMPTE    bool
	Language string
	Events   []SubtitleEvent
	RawXML   []byte
}

// NewClosedCaptionAsset constructs a closed-caption asset with a fresh
// identifier.
func NewClosedCaptionAsset(smpte bool) *ClosedCaptionAsset {
	return &ClosedCaptionAsset{base: newBase(""), SMPTE: smpte}
}

func (c *ClosedCaptionAsset) Kind() Kind { return KindClosedCaption }

func (c *ClosedCaptionAsset) Hash() (string, error) {
	if len(c.RawXML) > 0 {
		return digest.Bytes(c.RawXML), nil
	}
	return c.hash()
}

func (c *ClosedCaptionAsset) PKLType(d xmlcodec.Dialect) (string, error) {
	if c.SMPTE {
		return pklType(KindClosedCaption, xmlcodec.DialectSMPTE)
	}
	return pklType(KindClosedCaption, xmlcodec.DialectInterop)
}

func (c *ClosedCaptionAsset) Equal(other Asset, opts EqualOptions) bool {
	o, ok := other.(*ClosedCaptionAsset)
	if !ok {
		return false
	}
	if !c.id.Equal(o.id) || c.SMPTE != o.SMPTE || c.Language != o.Language {
		return false
	}
	if len(c.Events) != len(o.Events) {
		return false
	}
	if opts.ReelHashesCanDiffer {
		return true
	}
	ha, _ := c.Hash()
	hb, _ := o.Hash()
	return ha == hb
}
