package asset

import "github.com/mart-jansink/libdcp/pkg/xmlcodec"

// AtmosAsset is an Dolby Atmos immersive audio essence track (SMPTE only,
// spec.md §4.5 — Atmos has no Interop PKL type).
type AtmosAsset struct {
	base
	EditRate            EditRate
	IntrinsicDuration   int
	FirstFrame          int
	MaxChannelCount     int
	MaxObjectCount      int
	Encrypted           bool
}

// NewAtmosAsset constructs an Atmos asset with a fresh identifier.
func NewAtmosAsset() *AtmosAsset {
	return &AtmosAsset{base: newBase("")}
}

func (a *AtmosAsset) Kind() Kind            { return KindAtmos }
func (a *AtmosAsset) Hash() (string, error) { return a.hash() }

func (a *AtmosAsset) PKLType(dialect xmlcodec.Dialect) (string, error) {
	return pklType(KindAtmos, dialect)
}

func (a *AtmosAsset) Equal(other Asset, opts EqualOptions) bool {
	o, ok := other.(*AtmosAsset)
	if !ok {
		return false
	}
	if !a.id.Equal(o.id) || a.EditRate != o.EditRate || a.IntrinsicDuration != o.IntrinsicDuration {
		return false
	}
	if a.FirstFrame != o.FirstFrame || a.MaxChannelCount != o.MaxChannelCount || a.MaxObjectCount != o.MaxObjectCount {
		return false
	}
	if a.Encrypted != o.Encrypted {
		return false
	}
	if opts.ReelHashesCanDiffer {
		return true
	}
	ha, errA := a.Hash()
	hb, errB := o.Hash()
	if errA != nil || errB != nil {
		return errA == errB
	}
	return ha == hb
}
