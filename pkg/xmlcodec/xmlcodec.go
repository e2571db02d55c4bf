// Package xmlcodec provides namespace-aware, schema-validated read/write
// of DCP manifest XML documents (spec.md C1). It wraps
// github.com/beevik/etree so the signer (pkg/dcpsig) can serialize a
// document once in canonical form and never again — re-indenting after a
// digest has been computed silently invalidates it (spec.md's "signing
// ordering fragility" design note).
package xmlcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/beevik/etree"
)

// Dialect distinguishes the two incompatible DCP XML families.
type Dialect int

const (
	// DialectUnknown is the zero value; never a valid document dialect.
	DialectUnknown Dialect = iota
	// DialectInterop is the earlier, pre-SMPTE dialect.
	DialectInterop
	// DialectSMPTE is the SMPTE 429/428-series dialect.
	DialectSMPTE
)

func (d Dialect) String() string {
	switch d {
	case DialectInterop:
		return "interop"
	case DialectSMPTE:
		return "smpte"
	default:
		return "unknown"
	}
}

// DocumentKind identifies which of the DCP manifest document families a
// namespace URI belongs to.
type DocumentKind int

const (
	KindUnknown DocumentKind = iota
	KindAssetMap
	KindVolIndex
	KindCPL
	KindCPLMetadata
	KindSubtitle
	KindPKL
)

// namespaceEntry is one row of spec.md §4.1's table: a namespace URI
// together with the document kind and dialect it identifies. SMPTE's
// ASSETMAP and VOLINDEX are both defined by the 429-9 schema and so share
// a single namespace URI; Load disambiguates those two rows by the root
// element's tag name.
type namespaceEntry struct {
	namespace string
	kind      DocumentKind
	dialect   Dialect
	tag       string
}

var namespaceEntries = []namespaceEntry{
	{"http://www.digicine.com/PROTO-ASDCP-AM-20040311#", KindAssetMap, DialectInterop, "AssetMap"},
	{"http://www.smpte-ra.org/schemas/429-9/2007/AM", KindAssetMap, DialectSMPTE, "AssetMap"},
	{"http://www.digicine.com/PROTO-ASDCP-VL-20040311#", KindVolIndex, DialectInterop, "VolumeIndex"},
	{"http://www.smpte-ra.org/schemas/429-9/2007/AM", KindVolIndex, DialectSMPTE, "VolumeIndex"},
	{"http://www.digicine.com/PROTO-ASDCP-CPL-20040511#", KindCPL, DialectInterop, "CompositionPlaylist"},
	{"http://www.smpte-ra.org/schemas/429-7/2006/CPL", KindCPL, DialectSMPTE, "CompositionPlaylist"},
	{"http://www.smpte-ra.org/schemas/429-16/2014/CPL-Metadata", KindCPLMetadata, DialectSMPTE, "CompositionMetadataAsset"},
	{"http://www.digicine.com/schemas/437-Y/2007/Subtitle", KindSubtitle, DialectInterop, "DCSubtitle"},
	{"http://www.smpte-ra.org/schemas/428-7/2010/DCST", KindSubtitle, DialectSMPTE, "SubtitleReel"},
	{"http://www.digicine.com/PROTO-ASDCP-PKL-20040311#", KindPKL, DialectInterop, "PackingList"},
	{"http://www.smpte-ra.org/schemas/429-8/2007/PKL", KindPKL, DialectSMPTE, "PackingList"},
}

// ErrUnrecognizedNamespace is returned when a top-level document's root
// namespace is not one of the known DCP manifest namespaces.
var ErrUnrecognizedNamespace = errors.New("xmlcodec: unrecognized namespace")

// Document wraps an etree.Document together with the resolved dialect.
type Document struct {
	*etree.Document
	Kind      DocumentKind
	Dialect   Dialect
	Namespace string
}

// Load parses r as XML and resolves the dialect/kind of its root element
// against namespaceEntries, matching on namespace and, where a namespace
// is shared across kinds (SMPTE's ASSETMAP/VOLINDEX), on root tag name
// too. It fails with ErrUnrecognizedNamespace if the root's namespace is
// not recognized.
func Load(r io.Reader) (*Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, err
	}

	root := doc.Root()
	if root == nil {
		return nil, errors.New("xmlcodec: empty document")
	}

	ns := root.SelectAttrValue("xmlns", "")

	var matched *namespaceEntry
	for i, entry := range namespaceEntries {
		if entry.namespace != ns {
			continue
		}
		if entry.tag == root.Tag {
			matched = &namespaceEntries[i]
			break
		}
		if matched == nil {
			matched = &namespaceEntries[i]
		}
	}
	if matched == nil {
		return nil, ErrUnrecognizedNamespace
	}

	return &Document{Document: doc, Kind: matched.kind, Dialect: matched.dialect, Namespace: ns}, nil
}

// EntityResolver maps a document's namespace URI to the local schema file
// that validates it, so a SchemaValidator never has to know where on disk
// the DCP's schema set lives.
type EntityResolver interface {
	Resolve(namespace string) (file string, ok bool)
}

// SchemaSet is the default EntityResolver: it maps every namespace in
// namespaceEntries to a file of the same base name under Dir, e.g.
// ".../schemas/AssetMap.xsd" for the AssetMap namespaces.
type SchemaSet struct {
	Dir   string
	files map[string]string
}

// NewSchemaSet builds a SchemaSet rooted at dir, pre-populated from every
// namespace URI spec.md §4.1's table lists.
func NewSchemaSet(dir string) *SchemaSet {
	files := make(map[string]string, len(namespaceEntries))
	for _, entry := range namespaceEntries {
		// SMPTE's ASSETMAP and VOLINDEX share one namespace; the first
		// row (AssetMap) names its schema file.
		if _, ok := files[entry.namespace]; ok {
			continue
		}
		files[entry.namespace] = filepath.Join(dir, entry.tag+".xsd")
	}
	return &SchemaSet{Dir: dir, files: files}
}

func (s *SchemaSet) Resolve(namespace string) (string, bool) {
	file, ok := s.files[namespace]
	return file, ok
}

// SchemaValidator is the external collaborator that performs actual XML
// Schema validation against a resolved schema file; a full XSD engine is
// out of scope for this package (spec.md §1), so callers wire in their
// own implementation by assigning Validator.
type SchemaValidator interface {
	Validate(doc *Document, schemaFile string) error
}

type noopSchemaValidator struct{}

func (noopSchemaValidator) Validate(*Document, string) error { return nil }

// Validator is the package-level SchemaValidator every Document.Validate
// call delegates to. It defaults to a no-op, so schema validation is
// inert until a caller assigns a real implementation.
var Validator SchemaValidator = noopSchemaValidator{}

// Validate resolves d's namespace against resolver (if non-nil) and, when
// a schema file is found, delegates to Validator. A nil resolver, or a
// resolver with no entry for d's namespace, is not an error: schema
// validation is an opt-in extension, not a requirement for a well-formed
// document to load.
func (d *Document) Validate(resolver EntityResolver) error {
	if resolver == nil {
		return nil
	}
	file, ok := resolver.Resolve(d.Namespace)
	if !ok {
		return nil
	}
	return Validator.Validate(d, file)
}

// ParseError reports a document that failed to parse or failed schema
// validation, naming the file (and, where the XML decoder supplied one,
// the line) so callers can surface it distinctly from an I/O failure.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("xmlcodec: %s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("xmlcodec: %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NamespaceFor returns the canonical namespace URI for kind under dialect.
// CPL metadata has no Interop equivalent.
func NamespaceFor(kind DocumentKind, dialect Dialect) string {
	for _, entry := range namespaceEntries {
		if entry.kind == kind && entry.dialect == dialect {
			return entry.namespace
		}
	}
	return ""
}

// WriteIndented serializes doc with a two-space indent, UTF-8, no BOM,
// newline-terminated — the pretty form used for documents that will not
// be signed, or that are signed only after this call (never after).
func (d *Document) WriteIndented(w io.Writer) error {
	d.Document.Indent(2)
	_, err := d.Document.WriteTo(w)
	return err
}

// Canonicalize serializes doc with stable attribute order and no
// indentation change, suitable as the basis for an XML-DSig digest. It
// must be the last serialization step for a document that is about to be
// signed: calling WriteIndented afterward invalidates any signature
// computed over this output.
func (d *Document) Canonicalize() ([]byte, error) {
	d.Document.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	var buf bytes.Buffer
	if _, err := d.Document.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewDocument creates an empty document with the XML declaration the
// format requires (UTF-8, no standalone attribute).
func NewDocument() *Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return &Document{Document: doc}
}
