// Package dcp implements the top-level package loader and writer: the
// directory-level read/write algorithm tying ASSETMAP, PKL, and CPL
// together into one deep-equatable in-memory Package (spec.md §4.7).
package dcp

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mart-jansink/libdcp/pkg/asset"
	"github.com/mart-jansink/libdcp/pkg/assetmap"
	"github.com/mart-jansink/libdcp/pkg/cpl"
	"github.com/mart-jansink/libdcp/pkg/dcpcert"
	"github.com/mart-jansink/libdcp/pkg/dcpid"
	"github.com/mart-jansink/libdcp/pkg/digest"
	"github.com/mart-jansink/libdcp/pkg/pkl"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// ErrMissingAssetMap is returned by Read when no ASSETMAP(.xml) file is
// found in dir; the package cannot be interpreted without it.
var ErrMissingAssetMap = errors.New("dcp: missing ASSETMAP")

// ErrUnknownPklType is returned by Read when a PKL entry's Type is not
// dispatchable to any known asset/CPL parser.
var ErrUnknownPklType = errors.New("dcp: unrecognized PKL type")

// Note is an informational or warning finding surfaced during Read; it
// mirrors verify.Note's shape but Read only ever emits the narrow subset
// relevant to loading (ExternalAsset, MismatchedStandard) — the full
// rule set lives in package verify.
type Note struct {
	Code string
	Text string
	File string
}

func (n Note) String() string {
	if n.File != "" {
		return fmt.Sprintf("%s: %s (%s)", n.Code, n.Text, n.File)
	}
	return fmt.Sprintf("%s: %s", n.Code, n.Text)
}

// ReadOptions configures Read's tolerance for near-miss inputs.
type ReadOptions struct {
	// IgnoreIncorrectPictureMxfType is accepted from callers such as
	// verify.Config, but Read does not consult it: every asset is
	// constructed from its PKL Type (or its referencing reel slot)
	// whatever this field says.
	IgnoreIncorrectPictureMxfType bool

	// SchemaDir, if set, roots an xmlcodec.SchemaSet used to validate
	// every manifest document against its namespace's schema as it is
	// loaded (xmlcodec.Validator's documented extension point); left
	// unset, no schema resolution is attempted and only well-formedness
	// is checked.
	SchemaDir string
}

// Package is a fully loaded (or under-construction) DCP directory: its
// ASSETMAP, the PKLs it references in source order, the CPLs discovered
// in source order, and the flat vector of every asset the PKLs describe.
type Package struct {
	Dir      string
	AssetMap *assetmap.AssetMap
	PKLs     []*pkl.PKL
	CPLs     []*cpl.CPL
	Assets   []asset.Asset
}

// entryContext carries the intermediate lookup tables Read builds while
// walking the ASSETMAP and PKLs, before reel references are resolved.
type entryContext struct {
	dir         string
	dialect     xmlcodec.Dialect
	pathByID    map[string]string // id hex -> path relative to dir
	isPKL       map[string]bool
	ownerPKL    map[string]*pkl.PKL // id hex -> PKL that describes it
	assetByID   map[string]asset.Asset
	deferredIDs map[string]bool // ambiguous SMPTE application/mxf and Interop text/xml entries
}

// Read implements spec.md §4.7's read algorithm: locate the ASSETMAP,
// parse every PKL it references, dispatch each remaining id to the
// right parser by PKL Type, then resolve every CPL's reel references
// against the flat asset vector.
func Read(dir string, opts ReadOptions) (*Package, []Note, error) {
	var notes []Note

	var resolver xmlcodec.EntityResolver
	if opts.SchemaDir != "" {
		resolver = xmlcodec.NewSchemaSet(opts.SchemaDir)
	}

	amPath, dialect, err := locateAssetMap(dir, resolver)
	if err != nil {
		return nil, nil, err
	}
	amDoc, err := loadXML(amPath, resolver)
	if err != nil {
		return nil, nil, fmt.Errorf("dcp: %w", err)
	}
	am, err := assetmap.Read(amDoc)
	if err != nil {
		return nil, nil, fmt.Errorf("dcp: %w", err)
	}

	pkg := &Package{Dir: dir, AssetMap: am}

	ctx := &entryContext{
		dir:         dir,
		dialect:     dialect,
		pathByID:    make(map[string]string, len(am.Entries)),
		isPKL:       make(map[string]bool, len(am.Entries)),
		ownerPKL:    make(map[string]*pkl.PKL),
		assetByID:   make(map[string]asset.Asset),
		deferredIDs: make(map[string]bool),
	}
	for _, e := range am.Entries {
		ctx.pathByID[e.AssetID.Hex()] = e.Path
		if e.PackingList {
			ctx.isPKL[e.AssetID.Hex()] = true
		}
	}

	// Step 3: parse every referenced PKL, in ASSETMAP order.
	for _, e := range am.Entries {
		id := e.AssetID.Hex()
		if !ctx.isPKL[id] {
			continue
		}
		p, err := loadPKL(dir, ctx.pathByID[id], resolver)
		if err != nil {
			return nil, nil, fmt.Errorf("dcp: %w", err)
		}
		pkg.PKLs = append(pkg.PKLs, p)
		for _, e := range p.Entries {
			ctx.ownerPKL[e.AssetID.Hex()] = p
		}
	}

	// Steps 4-5: dispatch every non-PKL id present in some PKL; ids
	// absent from all PKLs are silently skipped. Walking am.Entries keeps
	// CPLs and assets in ASSETMAP order.
	for _, e := range am.Entries {
		id, path := e.AssetID.Hex(), e.Path
		if ctx.isPKL[id] {
			continue
		}
		owner, ok := ctx.ownerPKL[id]
		if !ok {
			continue
		}
		pklType, _ := owner.Type(assetIDFromHex(id))
		fullPath := filepath.Join(dir, path)

		if isCPLType(pklType, dialect) {
			doc, err := loadXML(fullPath, resolver)
			if err != nil {
				return nil, nil, fmt.Errorf("dcp: %w", err)
			}
			c, err := cpl.Read(doc)
			if err != nil {
				return nil, nil, fmt.Errorf("dcp: %w", err)
			}
			if c.Dialect != dialect {
				notes = append(notes, Note{Code: "MismatchedStandard", Text: "CPL standard differs from ASSETMAP standard", File: path})
			}
			pkg.CPLs = append(pkg.CPLs, c)
			continue
		}

		if pklType == "image/png" && dialect == xmlcodec.DialectInterop {
			// Referenced only from within Interop subtitle XML.
			continue
		}

		a, ferr := asset.Factory(pklType, dialect, false)
		if errors.Is(ferr, asset.ErrAmbiguousMXFType) || errors.Is(ferr, asset.ErrAmbiguousTextXmlType) {
			ctx.deferredIDs[id] = true
			continue
		}
		if ferr != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPklType, pklType)
		}
		a.SetPath(fullPath)
		if err := loadSubtitleContent(a); err != nil {
			return nil, nil, fmt.Errorf("dcp: %w", err)
		}
		ctx.assetByID[id] = a
		pkg.Assets = append(pkg.Assets, a)
	}

	// Step 6: resolve every CPL's reel references, filling deferred
	// SMPTE generic-MXF and Interop text/xml entries in with a kind
	// inferred from the slot that references them.
	for _, c := range pkg.CPLs {
		if err := resolveCPLRefs(c, ctx, pkg, &notes); err != nil {
			return nil, nil, fmt.Errorf("dcp: %w", err)
		}
	}

	return pkg, notes, nil
}

func assetIDFromHex(hex string) dcpid.Identifier {
	id, err := dcpid.Parse(hex)
	if err != nil {
		return dcpid.Identifier("")
	}
	return id
}

func isCPLType(pklType string, dialect xmlcodec.Dialect) bool {
	switch dialect {
	case xmlcodec.DialectInterop:
		return pklType == "text/xml;asdcpKind=CPL"
	default:
		return pklType == "text/xml"
	}
}

// resolveCPLRefs walks one CPL's reels, filling each reference's
// Resolved slot by id lookup against ctx.assetByID (or, for deferred
// SMPTE generic-MXF and Interop text/xml entries, materializing the asset now that the
// referencing slot reveals its kind). Refs unresolved either way and
// absent from the ASSETMAP entirely generate an ExternalAsset warning
// (the VF — version file — case, spec.md §4.7 step 6).
func resolveCPLRefs(c *cpl.CPL, ctx *entryContext, pkg *Package, notes *[]Note) error {
	var resolveErr error
	resolve := func(ref *cpl.ReelAssetReference, kind asset.Kind) {
		if ref == nil || resolveErr != nil {
			return
		}
		hex := ref.ID.Hex()
		if a, ok := ctx.assetByID[hex]; ok {
			ref.Resolved = a
			return
		}
		if ctx.deferredIDs[hex] {
			a, err := asset.FactoryForKind(kind, ctx.dialect)
			if err == nil {
				a.SetPath(filepath.Join(ctx.dir, ctx.pathByID[hex]))
				if err := loadSubtitleContent(a); err != nil {
					resolveErr = err
					return
				}
				ctx.assetByID[hex] = a
				pkg.Assets = append(pkg.Assets, a)
				ref.Resolved = a
				delete(ctx.deferredIDs, hex)
				return
			}
		}
		if _, inAssetMap := ctx.pathByID[hex]; !inAssetMap {
			*notes = append(*notes, Note{Code: "ExternalAsset", Text: fmt.Sprintf("reference %s is not present in the ASSETMAP", ref.ID)})
		}
	}

	for _, reel := range c.Reels {
		resolve(reel.MainPicture, asset.KindPictureMono)
		resolve(reel.MainSound, asset.KindSound)
		resolve(reel.MainSubtitle, asset.KindSubtitle)
		resolve(reel.Atmos, asset.KindAtmos)
		for _, cc := range reel.ClosedCaptions {
			resolve(cc, asset.KindClosedCaption)
		}
	}
	return resolveErr
}

// loadSubtitleContent reads an Interop (non-MXF-wrapped) subtitle or
// closed-caption asset's XML content from disk, preserving it verbatim
// in RawXML for hashing and parsing it into Events for the verifier's
// timing heuristics. SMPTE subtitle/closed-caption essence is MXF-
// wrapped and has no plain-XML content to read here.
func loadSubtitleContent(a asset.Asset) error {
	switch v := a.(type) {
	case *asset.SubtitleAsset:
		if v.SMPTE {
			return nil
		}
		raw, err := os.ReadFile(v.Path())
		if err != nil {
			return err
		}
		v.RawXML = raw
		events, err := asset.ParseSubtitleEvents(raw, v.TimeCodeRate)
		if err != nil {
			return err
		}
		v.Events = events
	case *asset.ClosedCaptionAsset:
		if v.SMPTE {
			return nil
		}
		raw, err := os.ReadFile(v.Path())
		if err != nil {
			return err
		}
		v.RawXML = raw
		events, err := asset.ParseSubtitleEvents(raw, 0)
		if err != nil {
			return err
		}
		v.Events = events
	}
	return nil
}

// locateAssetMap finds ASSETMAP or ASSETMAP.xml under dir and resolves
// its dialect from its namespace.
func locateAssetMap(dir string, resolver xmlcodec.EntityResolver) (string, xmlcodec.Dialect, error) {
	for _, name := range []string{"ASSETMAP", "ASSETMAP.xml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			doc, err := loadXML(path, resolver)
			if err != nil {
				return "", xmlcodec.DialectUnknown, fmt.Errorf("dcp: %w", err)
			}
			return path, doc.Dialect, nil
		}
	}
	return "", xmlcodec.DialectUnknown, ErrMissingAssetMap
}

// loadXML opens and parses the manifest at path, validating it against
// resolver's schema if resolver is non-nil. Both a malformed document
// and a schema-validation failure are reported as an
// *xmlcodec.ParseError carrying path (and, for a malformed document, a
// line number when the decoder supplies one) so the verifier can emit
// the distinct InvalidXml code instead of a generic read failure.
func loadXML(path string, resolver xmlcodec.EntityResolver) (*xmlcodec.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := xmlcodec.Load(f)
	if err != nil {
		return nil, &xmlcodec.ParseError{File: path, Line: xmlSyntaxErrorLine(err), Err: err}
	}
	if err := doc.Validate(resolver); err != nil {
		return nil, &xmlcodec.ParseError{File: path, Err: err}
	}
	return doc, nil
}

// xmlSyntaxErrorLine extracts the line number encoding/xml reports for
// a malformed document, or 0 if err does not wrap an *xml.SyntaxError.
func xmlSyntaxErrorLine(err error) int {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return se.Line
	}
	return 0
}

func loadPKL(dir, relPath string, resolver xmlcodec.EntityResolver) (*pkl.PKL, error) {
	doc, err := loadXML(filepath.Join(dir, relPath), resolver)
	if err != nil {
		return nil, err
	}
	return pkl.Read(doc)
}

// WriteMeta carries the human-authored fields a Write call stamps onto
// every manifest it produces.
type WriteMeta struct {
	Issuer     string
	Creator    string
	IssueDate  string
	Annotation string
}

// ErrEmptyNameFormat is returned by Write when nameFormat has no %t verb.
var ErrEmptyNameFormat = errors.New("dcp: name format must contain %t")

// Write implements spec.md §4.7's write algorithm: write every CPL
// (signed if signer is non-nil), accumulate their assets into a single
// shared PKL (each asset's hash computed and cached at most once), write
// the PKL, VOLINDEX, then ASSETMAP. nameFormat is a template with %t
// substituted by the type tag ("cpl", "pkl"); it defaults to
// "{tag}_{uuid}.xml" when empty.
func Write(dir string, standard xmlcodec.Dialect, meta WriteMeta, cpls []*cpl.CPL, signer *dcpcert.Chain, nameFormat string) (*Package, error) {
	if nameFormat != "" && !strings.Contains(nameFormat, "%t") {
		return nil, ErrEmptyNameFormat
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	p := pkl.New(standard)
	p.Annotation = meta.Annotation
	p.Issuer = meta.Issuer
	p.Creator = meta.Creator
	p.IssueDate = meta.IssueDate

	am := assetmap.New(standard)
	am.Annotation = meta.Annotation
	am.Issuer = meta.Issuer
	am.Creator = meta.Creator
	am.IssueDate = meta.IssueDate

	pkg := &Package{Dir: dir, AssetMap: am, PKLs: []*pkl.PKL{p}, CPLs: cpls}

	seen := make(map[string]bool)
	addAsset := func(a asset.Asset) error {
		hex := a.ID().Hex()
		if seen[hex] {
			return nil
		}
		seen[hex] = true
		pkg.Assets = append(pkg.Assets, a)

		hash, err := a.Hash()
		if err != nil {
			return err
		}
		info, err := os.Stat(a.Path())
		if err != nil {
			return err
		}
		typ, err := a.PKLType(standard)
		if err != nil {
			return err
		}
		p.AddEntry(pkl.Entry{
			AssetID:          a.ID(),
			Hash:             hash,
			Size:             info.Size(),
			Type:             typ,
			OriginalFileName: filepath.Base(a.Path()),
		})
		am.Entries = append(am.Entries, assetmap.Entry{AssetID: a.ID(), Path: filepath.Base(a.Path())})
		return nil
	}

	for _, c := range cpls {
		for _, reel := range c.Reels {
			for _, ref := range c.References(reel) {
				if ref.Resolved == nil {
					continue
				}
				hash, err := ref.Resolved.Hash()
				if err != nil {
					return nil, err
				}
				ref.Hash = hash
			}
		}

		cplFileName := formatName(nameFormat, "cpl", c.ID)
		doc, err := c.Write(signer)
		if err != nil {
			return nil, err
		}
		if err := writeDocument(dir, cplFileName, doc, signer != nil); err != nil {
			return nil, err
		}
		cplBytes, err := os.ReadFile(filepath.Join(dir, cplFileName))
		if err != nil {
			return nil, err
		}
		cplAssetID := c.ID

		for _, reel := range c.Reels {
			for _, ref := range c.References(reel) {
				if ref.Resolved == nil {
					continue
				}
				if err := addAsset(ref.Resolved); err != nil {
					return nil, err
				}
			}
		}

		p.AddEntry(pkl.Entry{
			AssetID:          cplAssetID,
			Hash:             digest.Bytes(cplBytes),
			Size:             int64(len(cplBytes)),
			Type:             cplPKLType(standard),
			OriginalFileName: cplFileName,
		})
		am.Entries = append(am.Entries, assetmap.Entry{AssetID: cplAssetID, Path: cplFileName})
	}

	pklFileName := formatName(nameFormat, "pkl", p.ID)
	pklDoc, err := p.Write(signer)
	if err != nil {
		return nil, err
	}
	if err := writeDocument(dir, pklFileName, pklDoc, signer != nil); err != nil {
		return nil, err
	}
	am.Entries = append(am.Entries, assetmap.Entry{AssetID: p.ID, Path: pklFileName, PackingList: true})

	vol := assetmap.NewVolIndex(standard)
	volDoc, err := vol.Write()
	if err != nil {
		return nil, err
	}
	if err := writeDocument(dir, "VOLINDEX.xml", volDoc, false); err != nil {
		return nil, err
	}

	amDoc, err := am.Write()
	if err != nil {
		return nil, err
	}
	if err := writeDocument(dir, "ASSETMAP.xml", amDoc, false); err != nil {
		return nil, err
	}

	return pkg, nil
}

func formatName(nameFormat, tag string, id dcpid.Identifier) string {
	if nameFormat == "" {
		nameFormat = "%t_" + id.Hex() + ".xml"
		return strings.ReplaceAll(nameFormat, "%t", tag)
	}
	return strings.ReplaceAll(nameFormat, "%t", tag)
}

func cplPKLType(dialect xmlcodec.Dialect) string {
	if dialect == xmlcodec.DialectInterop {
		return "text/xml;asdcpKind=CPL"
	}
	return "text/xml"
}

func writeDocument(dir, name string, doc *xmlcodec.Document, signed bool) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	if signed {
		// A signed document's bytes must never be re-indented after the
		// digest was computed; dcpsig.Sign already left the tree in its
		// final canonical form, so Write serializes it as-is.
		_, err = doc.WriteTo(f)
		return err
	}
	return doc.WriteIndented(f)
}

// Equal implements spec.md §6's deep-equality operation: same ASSETMAP
// order, same CPLs (via cpl.CPL.Equal), same asset count.
func (p *Package) Equal(other *Package, opts asset.EqualOptions, note func(string)) bool {
	equal := true
	fail := func(format string, args ...interface{}) {
		equal = false
		if note != nil {
			note(fmt.Sprintf(format, args...))
		}
	}

	if len(p.CPLs) != len(other.CPLs) {
		fail("cpl count mismatch: %d != %d", len(p.CPLs), len(other.CPLs))
		return equal
	}
	for i, c := range p.CPLs {
		if !c.Equal(other.CPLs[i], opts, note) {
			equal = false
		}
	}
	if len(p.Assets) != len(other.Assets) {
		fail("asset count mismatch: %d != %d", len(p.Assets), len(other.Assets))
	}
	if len(p.AssetMap.Entries) != len(other.AssetMap.Entries) {
		fail("assetmap entry count mismatch: %d != %d", len(p.AssetMap.Entries), len(other.AssetMap.Entries))
	} else {
		for i, e := range p.AssetMap.Entries {
			if !e.AssetID.Equal(other.AssetMap.Entries[i].AssetID) {
				fail("assetmap order mismatch at index %d", i)
			}
		}
	}
	return equal
}
