package asset

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/mart-jansink/libdcp/pkg/digest"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// SubtitleEventKind distinguishes a text-only subtitle event from an
// image (PNG) subtitle event.
type SubtitleEventKind int

const (
	SubtitleEventText SubtitleEventKind = iota
	SubtitleEventImage
)

// VerticalAlignment matches the alignment a subtitle event's vertical
// position is expressed relative to.
type VerticalAlignment int

const (
	AlignTop VerticalAlignment = iota
	AlignCenter
	AlignBottom
)

// Timecode is an HH:MM:SS:FF-style timecode at a given time-code rate.
type Timecode struct {
	Hours, Minutes, Seconds, Frames int
	Rate                            int
}

// ToFrames converts the timecode to an absolute frame count at Rate.
func (t Timecode) ToFrames() int {
	return ((t.Hours*60+t.Minutes)*60+t.Seconds)*t.Rate + t.Frames
}

// SubtitleEvent is one displayed subtitle line or image, in or out at a
// given timecode pair.
type SubtitleEvent struct {
	Kind       SubtitleEventKind
	In, Out    Timecode
	Text       string
	ImagePNG   []byte
	VPosition  float64 // 0..1, meaning depends on Alignment
	Alignment  VerticalAlignment
}

// SubtitleAsset is an Interop XML or SMPTE MXF-wrapped subtitle asset.
type SubtitleAsset struct {
	base
	SMPTE           bool
	ContentTitle    string
	Language        string
	ReelNumber      int
	StartTime       Timecode
	EditRate        EditRate
	TimeCodeRate    int
	Events          []SubtitleEvent
	FontData        map[string][]byte // font id -> embedded font bytes
	RawXML          []byte            // preserved verbatim for hashing
}

// NewSubtitleAsset constructs a subtitle asset with a fresh identifier.
func NewSubtitleAsset(smpte bool) *SubtitleAsset {
	return &SubtitleAsset{base: newBase(""), SMPTE: smpte, FontData: map[string][]byte{}}
}

func (s *SubtitleAsset) Kind() Kind { return KindSubtitle }

// Hash prefers RawXML (byte-exact, as loaded/emitted) over re-hashing the
// on-disk path, since subtitle XML is the one asset kind the format
// requires to be preserved verbatim for hashing (spec.md §3).
func (s *SubtitleAsset) Hash() (string, error) {
	if len(s.RawXML) > 0 {
		return digest.Bytes(s.RawXML), nil
	}
	return s.hash()
}

func (s *SubtitleAsset) PKLType(d xmlcodec.Dialect) (string, error) {
	if s.SMPTE {
		return pklType(KindSubtitle, xmlcodec.DialectSMPTE)
	}
	return pklType(KindSubtitle, xmlcodec.DialectInterop)
}

func (s *SubtitleAsset) Equal(other Asset, opts EqualOptions) bool {
	o, ok := other.(*SubtitleAsset)
	if !ok {
		return false
	}
	if !s.id.Equal(o.id) || s.SMPTE != o.SMPTE || s.Language != o.Language {
		return false
	}
	if len(s.Events) != len(o.Events) {
		return false
	}
	if opts.ReelHashesCanDiffer {
		return true
	}
	ha, _ := s.Hash()
	hb, _ := o.Hash()
	return ha == hb
}

// DefaultSubtitleRate is the time-code rate assumed for an Interop
// subtitle or closed-caption XML document that does not otherwise carry
// one; 24 fps is the common case and matches verify.Config's frame-rate
// default.
const DefaultSubtitleRate = 24

// ParseSubtitleEvents parses the <Subtitle> elements of an Interop
// DCSubtitle or SMPTE SubtitleReel document into SubtitleEvent values.
// Each <Subtitle> carries TimeIn/TimeOut attributes; its <Text> children
// carry the displayed line and vertical position/alignment, and its
// <Image> children (PNG subtitles) carry only timing. This mirrors the
// in/out/position/alignment fields the original's SubtitleImage and
// SubtitleString constructors take (subtitle_image.cc).
func ParseSubtitleEvents(raw []byte, rate int) ([]SubtitleEvent, error) {
	if rate <= 0 {
		rate = DefaultSubtitleRate
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("asset: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("asset: empty subtitle document")
	}

	var events []SubtitleEvent
	for _, subEl := range root.FindElements("//Subtitle") {
		in, err := parseSubtitleTimecode(subEl.SelectAttrValue("TimeIn", ""), rate)
		if err != nil {
			return nil, err
		}
		out, err := parseSubtitleTimecode(subEl.SelectAttrValue("TimeOut", ""), rate)
		if err != nil {
			return nil, err
		}
		for _, textEl := range subEl.SelectElements("Text") {
			vpos, _ := strconv.ParseFloat(textEl.SelectAttrValue("VPosition", "0"), 64)
			events = append(events, SubtitleEvent{
				Kind:      SubtitleEventText,
				In:        in,
				Out:       out,
				Text:      textEl.Text(),
				VPosition: vpos / 100,
				Alignment: parseVAlign(textEl.SelectAttrValue("VAlign", "")),
			})
		}
		for range subEl.SelectElements("Image") {
			events = append(events, SubtitleEvent{Kind: SubtitleEventImage, In: in, Out: out})
		}
	}
	return events, nil
}

func parseSubtitleTimecode(s string, rate int) (Timecode, error) {
	var h, m, sec, f int
	if _, err := fmt.Sscanf(s, "%d:%d:%d:%d", &h, &m, &sec, &f); err != nil {
		return Timecode{}, fmt.Errorf("asset: invalid subtitle timecode %q: %w", s, err)
	}
	return Timecode{Hours: h, Minutes: m, Seconds: sec, Frames: f, Rate: rate}, nil
}

func parseVAlign(s string) VerticalAlignment {
	switch s {
	case "top":
		return AlignTop
	case "bottom":
		return AlignBottom
	default:
		return AlignCenter
	}
}
