package asset

import (
	"errors"

	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// ErrUnknownPklType is returned by Factory when pklType matches no known
// (kind, dialect) combination in spec.md §4.5's table.
var ErrUnknownPklType = errors.New("asset: unrecognized PKL type string")

// Factory constructs the right concrete Asset variant for a PKL `Type`
// string read from an on-disk Packing List, mirroring the dispatch the
// package loader performs when resolving <Asset> entries into typed
// values (spec.md C7 step 2).
//
// isStereo disambiguates stereo from mono picture, which share a PKL
// type string. A closed caption track is otherwise indistinguishable
// from a main subtitle at the PKL level (both Interop Timed Text and
// SMPTE generic MXF collapse them to one type string); Factory reports
// ErrAmbiguousTextXmlType/ErrAmbiguousMXFType for those and the caller
// must use FactoryForKind once the referencing reel slot is known.
func Factory(pklType string, dialect xmlcodec.Dialect, isStereo bool) (Asset, error) {
	switch pklType {
	case "application/mxf;asdcpKind=Picture":
		return NewPictureAsset(isStereo), nil
	case "application/mxf;asdcpKind=Sound":
		return NewSoundAsset(), nil
	case "text/xml":
		// Interop's Timed Text type string cannot by itself distinguish
		// a main subtitle from a closed caption (both are ClosedCaption
		// tracks dressed in the same schema); the caller must defer to
		// FactoryForKind once the referencing reel slot is known, the
		// same way SMPTE's generic application/mxf type is deferred.
		return nil, ErrAmbiguousTextXmlType
	case "application/ttf":
		return NewFontAsset(), nil
	case "application/mxf":
		// SMPTE collapses picture, sound, subtitle, atmos, and closed
		// caption onto the single generic MXF type; only the CPL reel
		// slot that references the asset tells them apart, so the
		// loader supplies an explicit kind hint via FactoryForKind.
		return nil, ErrAmbiguousMXFType
	default:
		return nil, ErrUnknownPklType
	}
}

// ErrAmbiguousMXFType is returned by Factory when pklType is the generic
// SMPTE "application/mxf" type, which cannot alone distinguish picture,
// sound, subtitle, atmos, or closed-caption essence; FactoryForKind must
// be used instead once the caller knows the asset's kind from its CPL
// reel slot.
var ErrAmbiguousMXFType = errors.New("asset: application/mxf type requires a kind hint from the referencing reel slot")

// ErrAmbiguousTextXmlType is returned by Factory when pklType is
// Interop's generic "text/xml" type, which cannot alone distinguish a
// main subtitle from a closed caption; FactoryForKind must be used
// instead once the caller knows the asset's kind from its CPL reel slot.
var ErrAmbiguousTextXmlType = errors.New("asset: text/xml type requires a kind hint from the referencing reel slot")

// FactoryForKind constructs the concrete Asset variant for an explicitly
// known kind and dialect, used once the loader has resolved which reel
// slot (and therefore which essence kind) an ambiguous PKL entry — a
// generic SMPTE "application/mxf" type or an Interop "text/xml" type —
// belongs to.
func FactoryForKind(kind Kind, dialect xmlcodec.Dialect) (Asset, error) {
	smpte := dialect == xmlcodec.DialectSMPTE
	switch kind {
	case KindPictureMono:
		return NewPictureAsset(false), nil
	case KindPictureStereo:
		return NewPictureAsset(true), nil
	case KindSound:
		return NewSoundAsset(), nil
	case KindSubtitle:
		return NewSubtitleAsset(smpte), nil
	case KindAtmos:
		return NewAtmosAsset(), nil
	case KindClosedCaption:
		return NewClosedCaptionAsset(smpte), nil
	case KindFont:
		return NewFontAsset(), nil
	default:
		return nil, ErrUnknownPklType
	}
}
