// Package pkl implements the Packing List: the manifest enumerating every
// asset in a DCP together with its hash, size, and MIME-typed Type string
// (spec.md §3, §4.7).
package pkl

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mart-jansink/libdcp/pkg/dcpcert"
	"github.com/mart-jansink/libdcp/pkg/dcpid"
	"github.com/mart-jansink/libdcp/pkg/dcpsig"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

// Entry is one <Asset> record inside a PKL.
type Entry struct {
	AssetID          dcpid.Identifier
	Hash             string
	Size             int64
	Type             string
	OriginalFileName string
}

// PKL is a parsed or under-construction Packing List.
type PKL struct {
	ID         dcpid.Identifier
	Annotation string
	Issuer     string
	Creator    string
	IssueDate  string
	Dialect    xmlcodec.Dialect
	Entries    []Entry

	// Signed reports whether this PKL carries a <Signature> element,
	// either because Read found one on the parsed document or because
	// Write was given a signer. The verifier's encryption rule family
	// reads it to decide whether a PKL referencing encrypted content
	// satisfies spec.md §4.8's "signed if encrypted" requirement.
	Signed bool
}

// New constructs an empty PKL with a fresh identifier for dialect.
func New(dialect xmlcodec.Dialect) *PKL {
	return &PKL{ID: dcpid.New(), Dialect: dialect}
}

// Hash returns the recorded hash for id, if present.
func (p *PKL) Hash(id dcpid.Identifier) (string, bool) {
	for _, e := range p.Entries {
		if e.AssetID.Equal(id) {
			return e.Hash, true
		}
	}
	return "", false
}

// Type returns the recorded MIME `Type` string for id, if present.
func (p *PKL) Type(id dcpid.Identifier) (string, bool) {
	for _, e := range p.Entries {
		if e.AssetID.Equal(id) {
			return e.Type, true
		}
	}
	return "", false
}

// AddEntry appends an asset entry, used by the package writer's
// add_to_pkl step (spec.md §4.7).
func (p *PKL) AddEntry(e Entry) {
	p.Entries = append(p.Entries, e)
}

// ErrNotAPackingList is returned by Read when doc is not a PKL document.
var ErrNotAPackingList = errors.New("pkl: document is not a Packing List")

// Read parses doc (already resolved to KindPKL by xmlcodec.Load) into a
// PKL. Interop and SMPTE Packing Lists share the same element names; only
// the namespace differs, which xmlcodec has already resolved into
// doc.Dialect.
func Read(doc *xmlcodec.Document) (*PKL, error) {
	if doc.Kind != xmlcodec.KindPKL {
		return nil, ErrNotAPackingList
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNotAPackingList
	}

	p := &PKL{Dialect: doc.Dialect, Signed: root.SelectElement("Signature") != nil}

	if el := root.SelectElement("Id"); el != nil {
		id, err := dcpid.Parse(el.Text())
		if err != nil {
			return nil, fmt.Errorf("pkl: %w", err)
		}
		p.ID = id
	}
	if el := root.SelectElement("AnnotationText"); el != nil {
		p.Annotation = el.Text()
	}
	if el := root.SelectElement("IssueDate"); el != nil {
		p.IssueDate = el.Text()
	}
	if el := root.SelectElement("Issuer"); el != nil {
		p.Issuer = el.Text()
	}
	if el := root.SelectElement("Creator"); el != nil {
		p.Creator = el.Text()
	}

	assetList := root.SelectElement("AssetList")
	if assetList == nil {
		return p, nil
	}
	for _, assetEl := range assetList.SelectElements("Asset") {
		var e Entry
		if idEl := assetEl.SelectElement("Id"); idEl != nil {
			id, err := dcpid.Parse(idEl.Text())
			if err != nil {
				return nil, fmt.Errorf("pkl: %w", err)
			}
			e.AssetID = id
		}
		if el := assetEl.SelectElement("Hash"); el != nil {
			e.Hash = el.Text()
		}
		if el := assetEl.SelectElement("Size"); el != nil {
			size, err := strconv.ParseInt(el.Text(), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("pkl: invalid Size: %w", err)
			}
			e.Size = size
		}
		if el := assetEl.SelectElement("Type"); el != nil {
			e.Type = el.Text()
		}
		if el := assetEl.SelectElement("OriginalFileName"); el != nil {
			e.OriginalFileName = el.Text()
		}
		p.Entries = append(p.Entries, e)
	}

	return p, nil
}

// Write serializes p into a fresh xmlcodec.Document with the namespace
// matching p.Dialect. If chain is non-nil the document is signed in
// place before being returned (spec.md §4.7 "write PKL (signed if
// signer)"), the same way cpl.CPL.Write signs a CPL, and p.Signed is set
// so later encryption checks see the PKL's true signed state.
func (p *PKL) Write(chain *dcpcert.Chain) (*xmlcodec.Document, error) {
	ns := xmlcodec.NamespaceFor(xmlcodec.KindPKL, p.Dialect)
	if ns == "" {
		return nil, fmt.Errorf("pkl: no namespace for dialect %v", p.Dialect)
	}

	doc := xmlcodec.NewDocument()
	doc.Kind = xmlcodec.KindPKL
	doc.Dialect = p.Dialect

	root := doc.CreateElement("PackingList")
	root.CreateAttr("xmlns", ns)

	root.CreateElement("Id").SetText(p.ID.String())
	if p.Annotation != "" {
		root.CreateElement("AnnotationText").SetText(p.Annotation)
	}
	root.CreateElement("IssueDate").SetText(p.IssueDate)
	root.CreateElement("Issuer").SetText(p.Issuer)
	root.CreateElement("Creator").SetText(p.Creator)

	assetList := root.CreateElement("AssetList")
	for _, e := range p.Entries {
		assetEl := assetList.CreateElement("Asset")
		assetEl.CreateElement("Id").SetText(e.AssetID.String())
		if e.OriginalFileName != "" {
			assetEl.CreateElement("OriginalFileName").SetText(e.OriginalFileName)
		}
		assetEl.CreateElement("Hash").SetText(e.Hash)
		assetEl.CreateElement("Size").SetText(strconv.FormatInt(e.Size, 10))
		assetEl.CreateElement("Type").SetText(e.Type)
	}

	if chain != nil {
		if err := dcpsig.Sign(doc, p.Dialect, chain); err != nil {
			return nil, err
		}
		p.Signed = true
	}

	return doc, nil
}
