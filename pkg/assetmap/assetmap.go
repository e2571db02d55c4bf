// Package assetmap implements the ASSETMAP (opaque asset id -> relative
// file path) and VOLINDEX (volume count) manifests every DCP carries
// (spec.md §3, §4.7).
package assetmap

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mart-jansink/libdcp/pkg/dcpid"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// Entry is one <Asset> record inside an ASSETMAP: an id, the file's path
// relative to the package directory, and whether it is the entry for a
// Packing List.
type Entry struct {
	AssetID      dcpid.Identifier
	Path         string
	PackingList  bool
}

// AssetMap is a parsed or under-construction ASSETMAP.
type AssetMap struct {
	ID         dcpid.Identifier
	Annotation string
	Issuer     string
	Creator    string
	IssueDate  string
	Dialect    xmlcodec.Dialect
	Entries    []Entry
}

// New constructs an empty ASSETMAP with a fresh identifier for dialect.
func New(dialect xmlcodec.Dialect) *AssetMap {
	return &AssetMap{ID: dcpid.New(), Dialect: dialect}
}

// ErrNotAnAssetMap is returned by Read when doc is not an ASSETMAP.
var ErrNotAnAssetMap = errors.New("assetmap: document is not an AssetMap")

// Read parses doc (already resolved to KindAssetMap by xmlcodec.Load)
// into an AssetMap. Chunked assets spanning more than one <Chunk> are
// rejected, matching the original reader's "unsupported asset chunk
// count" restriction — every DCP encountered in practice uses exactly
// one chunk per asset.
func Read(doc *xmlcodec.Document) (*AssetMap, error) {
	if doc.Kind != xmlcodec.KindAssetMap {
		return nil, ErrNotAnAssetMap
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNotAnAssetMap
	}

	am := &AssetMap{Dialect: doc.Dialect}

	if el := root.SelectElement("Id"); el != nil {
		id, err := dcpid.Parse(el.Text())
		if err != nil {
			return nil, fmt.Errorf("assetmap: %w", err)
		}
		am.ID = id
	}
	if el := root.SelectElement("AnnotationText"); el != nil {
		am.Annotation = el.Text()
	}
	if el := root.SelectElement("IssueDate"); el != nil {
		am.IssueDate = el.Text()
	}
	if el := root.SelectElement("Issuer"); el != nil {
		am.Issuer = el.Text()
	}
	if el := root.SelectElement("Creator"); el != nil {
		am.Creator = el.Text()
	}

	assetList := root.SelectElement("AssetList")
	if assetList == nil {
		return am, nil
	}
	for _, assetEl := range assetList.SelectElements("Asset") {
		var e Entry
		if idEl := assetEl.SelectElement("Id"); idEl != nil {
			id, err := dcpid.Parse(idEl.Text())
			if err != nil {
				return nil, fmt.Errorf("assetmap: %w", err)
			}
			e.AssetID = id
		}

		switch am.Dialect {
		case xmlcodec.DialectSMPTE:
			if el := assetEl.SelectElement("PackingList"); el != nil {
				e.PackingList = el.Text() == "true"
			}
		default:
			e.PackingList = assetEl.SelectElement("PackingList") != nil
		}

		chunkList := assetEl.SelectElement("ChunkList")
		if chunkList == nil {
			return nil, errors.New("assetmap: asset has no ChunkList")
		}
		chunks := chunkList.SelectElements("Chunk")
		if len(chunks) != 1 {
			return nil, errors.New("assetmap: unsupported asset chunk count")
		}
		if pathEl := chunks[0].SelectElement("Path"); pathEl != nil {
			e.Path = pathEl.Text()
		}

		am.Entries = append(am.Entries, e)
	}

	return am, nil
}

// Write serializes am into a fresh xmlcodec.Document, using the field
// order the two dialects' schemas each expect.
func (am *AssetMap) Write() (*xmlcodec.Document, error) {
	ns := xmlcodec.NamespaceFor(xmlcodec.KindAssetMap, am.Dialect)
	if ns == "" {
		return nil, fmt.Errorf("assetmap: no namespace for dialect %v", am.Dialect)
	}

	doc := xmlcodec.NewDocument()
	doc.Kind = xmlcodec.KindAssetMap
	doc.Dialect = am.Dialect

	root := doc.CreateElement("AssetMap")
	root.CreateAttr("xmlns", ns)

	root.CreateElement("Id").SetText(am.ID.String())
	root.CreateElement("AnnotationText").SetText(am.Annotation)

	switch am.Dialect {
	case xmlcodec.DialectSMPTE:
		root.CreateElement("Creator").SetText(am.Creator)
		root.CreateElement("VolumeCount").SetText("1")
		root.CreateElement("IssueDate").SetText(am.IssueDate)
		root.CreateElement("Issuer").SetText(am.Issuer)
	default:
		root.CreateElement("VolumeCount").SetText("1")
		root.CreateElement("IssueDate").SetText(am.IssueDate)
		root.CreateElement("Issuer").SetText(am.Issuer)
		root.CreateElement("Creator").SetText(am.Creator)
	}

	assetList := root.CreateElement("AssetList")
	for _, e := range am.Entries {
		assetEl := assetList.CreateElement("Asset")
		assetEl.CreateElement("Id").SetText(e.AssetID.String())

		switch am.Dialect {
		case xmlcodec.DialectSMPTE:
			pkText := "false"
			if e.PackingList {
				pkText = "true"
			}
			assetEl.CreateElement("PackingList").SetText(pkText)
		default:
			if e.PackingList {
				assetEl.CreateElement("PackingList")
			}
		}

		chunkList := assetEl.CreateElement("ChunkList")
		chunk := chunkList.CreateElement("Chunk")
		chunk.CreateElement("Path").SetText(e.Path)
		chunk.CreateElement("VolumeIndex").SetText("1")
		chunk.CreateElement("Offset").SetText("0")
	}

	return doc, nil
}

// VolIndex is the VOLINDEX manifest: a single volume-count declaration.
type VolIndex struct {
	Dialect xmlcodec.Dialect
	Index   int
}

// NewVolIndex constructs a VOLINDEX declaring volume 1, the only value
// used by single-disc deliveries (spec.md GLOSSARY).
func NewVolIndex(dialect xmlcodec.Dialect) *VolIndex {
	return &VolIndex{Dialect: dialect, Index: 1}
}

// Write serializes v into a fresh xmlcodec.Document.
func (v *VolIndex) Write() (*xmlcodec.Document, error) {
	ns := xmlcodec.NamespaceFor(xmlcodec.KindVolIndex, v.Dialect)
	if ns == "" {
		return nil, fmt.Errorf("assetmap: no VOLINDEX namespace for dialect %v", v.Dialect)
	}

	doc := xmlcodec.NewDocument()
	doc.Kind = xmlcodec.KindVolIndex
	doc.Dialect = v.Dialect

	root := doc.CreateElement("VolumeIndex")
	root.CreateAttr("xmlns", ns)
	root.CreateElement("Index").SetText(strconv.Itoa(v.Index))

	return doc, nil
}
