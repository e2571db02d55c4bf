package asset

import "github.com/mart-jansink/libdcp/pkg/xmlcodec"

// SoundAsset is a PCM sound essence track.
type SoundAsset struct {
	base
	EditRate   EditRate
	SampleRate int
	Channels   int
	Language   string
	Encrypted  bool
}

// NewSoundAsset constructs a sound asset with a fresh identifier.
func NewSoundAsset() *SoundAsset {
	return &SoundAsset{base: newBase("")}
}

func (s *SoundAsset) Kind() Kind              { return KindSound }
func (s *SoundAsset) Hash() (string, error)   { return s.hash() }
func (s *SoundAsset) PKLType(d xmlcodec.Dialect) (string, error) { return pklType(KindSound, d) }

func (s *SoundAsset) Equal(other Asset, opts EqualOptions) bool {
	o, ok := other.(*SoundAsset)
	if !ok {
		return false
	}
	if !s.id.Equal(o.id) || s.EditRate != o.EditRate || s.Channels != o.Channels {
		return false
	}
	if s.Language != o.Language || s.Encrypted != o.Encrypted {
		return false
	}
	if diff := s.SampleRate - o.SampleRate; diff > opts.MaxAudioSampleError || diff < -opts.MaxAudioSampleError {
		return false
	}
	if opts.ReelHashesCanDiffer {
		return true
	}
	ha, errA := s.Hash()
	hb, errB := o.Hash()
	if errA != nil || errB != nil {
		return errA == errB
	}
	return ha == hb
}
