// Package asset implements the polymorphic DCP asset hierarchy (spec.md
// C5): picture (mono/stereo), sound, subtitle, atmos, and font assets,
// expressed as a tagged variant over a shared Asset interface rather than
// a class hierarchy (spec.md Design Note 1).
package asset

import (
	"errors"
	"fmt"

	"github.com/mart-jansink/libdcp/pkg/dcpid"
	"github.com/mart-jansink/libdcp/pkg/digest"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// Kind tags which asset variant a value holds.
type Kind int

const (
	KindUnknown Kind = iota
	KindPictureMono
	KindPictureStereo
	KindSound
	KindSubtitle
	KindAtmos
	KindFont
	KindClosedCaption
)

// EditRate is a rational frame rate, e.g. 24/1.
type EditRate struct {
	Numerator, Denominator int
}

func (r EditRate) String() string {
	return fmt.Sprintf("%d %d", r.Numerator, r.Denominator)
}

// Asset is the shared surface every concrete asset variant implements.
// The package loader maps a PKL `Type` string to the right constructor;
// callers interact with assets only through this interface.
type Asset interface {
	ID() dcpid.Identifier
	Kind() Kind
	Path() string
	SetPath(string)
	// Hash returns the cached SHA-1/base64 digest, computing and caching
	// it from Path() on first call. Subtitle, closed-caption and font
	// assets holding raw bytes in memory hash those bytes instead.
	Hash() (string, error)
	// PKLType returns the MIME-typed `Type` string this asset is
	// declared with inside a PKL, per spec.md §4.5's table.
	PKLType(dialect xmlcodec.Dialect) (string, error)
	Equal(other Asset, opts EqualOptions) bool
}

// EqualOptions configures Package.Equal/Asset.Equal tolerances (spec.md §6).
type EqualOptions struct {
	AnnotationTextsCanDiffer bool
	ReelHashesCanDiffer      bool
	MaxAudioSampleError      int
}

// base holds the fields every asset variant owns: id, optional path, and
// a cached hash computed at most once per path (SetPath clears it).
type base struct {
	id         dcpid.Identifier
	path       string
	cachedHash string
}

func newBase(id dcpid.Identifier) base {
	if id.IsZero() {
		id = dcpid.New()
	}
	return base{id: id}
}

func (b *base) ID() dcpid.Identifier { return b.id }
func (b *base) Path() string         { return b.path }
func (b *base) SetPath(p string)     { b.path = p; b.cachedHash = "" }

func (b *base) hash() (string, error) {
	if b.cachedHash != "" {
		return b.cachedHash, nil
	}
	if b.path == "" {
		return "", errors.New("asset: no path set, cannot compute hash")
	}
	h, err := digest.File(b.path, 0, nil)
	if err != nil {
		return "", err
	}
	b.cachedHash = h
	return h, nil
}

// pklTypeTable implements spec.md §4.5's Interop/SMPTE MIME-type table.
var pklTypeTable = map[Kind]map[xmlcodec.Dialect]string{
	KindPictureMono: {
		xmlcodec.DialectInterop: "application/mxf;asdcpKind=Picture",
		xmlcodec.DialectSMPTE:   "application/mxf",
	},
	KindPictureStereo: {
		xmlcodec.DialectInterop: "application/mxf;asdcpKind=Picture",
		xmlcodec.DialectSMPTE:   "application/mxf",
	},
	KindSound: {
		xmlcodec.DialectInterop: "application/mxf;asdcpKind=Sound",
		xmlcodec.DialectSMPTE:   "application/mxf",
	},
	KindSubtitle: {
		xmlcodec.DialectInterop: "text/xml",
		xmlcodec.DialectSMPTE:   "application/mxf",
	},
	KindAtmos: {
		xmlcodec.DialectSMPTE: "application/mxf",
	},
	KindFont: {
		xmlcodec.DialectInterop: "application/ttf",
	},
	KindClosedCaption: {
		xmlcodec.DialectInterop: "text/xml",
		xmlcodec.DialectSMPTE:   "application/mxf",
	},
}

// ErrNoPKLTypeForDialect is returned when a (kind, dialect) pair has no
// entry in spec.md §4.5's table (e.g. Atmos under Interop, Font under SMPTE).
var ErrNoPKLTypeForDialect = errors.New("asset: no PKL type for this kind/dialect combination")

func pklType(kind Kind, dialect xmlcodec.Dialect) (string, error) {
	byDialect, ok := pklTypeTable[kind]
	if !ok {
		return "", ErrNoPKLTypeForDialect
	}
	t, ok := byDialect[dialect]
	if !ok {
		return "", ErrNoPKLTypeForDialect
	}
	return t, nil
}
