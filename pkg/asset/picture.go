package asset

import (
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// FrameSize is a picture asset's frame size in pixels.
type FrameSize struct {
	Width, Height int
}

// PictureAsset is a mono or stereo (3D) picture essence asset.
type PictureAsset struct {
	base
	Stereo              bool
	EditRate            EditRate
	IntrinsicFrameCount int
	FrameSize           FrameSize
	Encrypted           bool
}

// NewPictureAsset constructs a picture asset with a fresh identifier.
func NewPictureAsset(stereo bool) *PictureAsset {
	return &PictureAsset{base: newBase(""), Stereo: stereo}
}

func (p *PictureAsset) Kind() Kind {
	if p.Stereo {
		return KindPictureStereo
	}
	return KindPictureMono
}

func (p *PictureAsset) Hash() (string, error) { return p.hash() }

func (p *PictureAsset) PKLType(dialect xmlcodec.Dialect) (string, error) {
	return pklType(p.Kind(), dialect)
}

func (p *PictureAsset) Equal(other Asset, opts EqualOptions) bool {
	o, ok := other.(*PictureAsset)
	if !ok {
		return false
	}
	if !p.id.Equal(o.id) || p.Stereo != o.Stereo || p.EditRate != o.EditRate {
		return false
	}
	if p.IntrinsicFrameCount != o.IntrinsicFrameCount || p.FrameSize != o.FrameSize {
		return false
	}
	if p.Encrypted != o.Encrypted {
		return false
	}
	if opts.ReelHashesCanDiffer {
		return true
	}
	ha, errA := p.Hash()
	hb, errB := o.Hash()
	if errA != nil || errB != nil {
		return errA == errB
	}
	return ha == hb
}
