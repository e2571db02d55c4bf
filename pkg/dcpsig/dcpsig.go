// Package dcpsig implements the XML-DSig enveloped signature DCP
// manifests carry (spec.md C4), layered on pkg/dcpcert for the
// certificate chain and pkg/xmlcodec for canonical serialization.
package dcpsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // Interop DCPs are specified to use SHA-1.
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/mart-jansink/libdcp/pkg/dcpcert"
	"github.com/mart-jansink/libdcp/pkg/xmlcodec"
)

const (
	xmldsigNS  = "http://www.w3.org/2000/09/xmldsig#"
	c14nAlgURI = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	envSigURI  = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// ErrCouldNotSign is returned when a chain has no usable private key.
var ErrCouldNotSign = errors.New("dcpsig: chain has no private key to sign with")

// ErrSignatureInvalid is returned by Verify when the digest or signature
// does not match.
var ErrSignatureInvalid = errors.New("dcpsig: signature verification failed")

// digestAlgorithmFor returns the DigestMethod/SignatureMethod algorithm
// URIs and hash function for dialect: SHA-1 for Interop, SHA-256 for
// SMPTE, per spec.md §4.3.
func digestAlgorithmFor(dialect xmlcodec.Dialect) (digestURI, sigURI string, hash crypto.Hash) {
	if dialect == xmlcodec.DialectSMPTE {
		return xmldsigNS + "sha256", "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256", crypto.SHA256
	}
	return xmldsigNS + "sha1", xmldsigNS + "rsa-sha1", crypto.SHA1
}

func sum(hash crypto.Hash, data []byte) []byte {
	if hash == crypto.SHA256 {
		s := sha256.Sum256(data)
		return s[:]
	}
	s := sha1.Sum(data) //nolint:gosec
	return s[:]
}

// Sign inserts a <Signer> element (leaf issuer/serial/subject) and a
// <Signature> element (XML-DSig, enveloped-signature transform,
// xml-c14n-20010315 canonicalization) as the last children of doc's root,
// then re-canonicalizes and signs. This must be the final mutation of doc
// before it is written to disk: any later re-indentation invalidates the
// digest (spec.md's signing-ordering design note).
func Sign(doc *xmlcodec.Document, dialect xmlcodec.Dialect, chain *dcpcert.Chain) error {
	if chain.PrivateKey == nil {
		return ErrCouldNotSign
	}

	ordered, err := chain.LeafToRoot()
	if err != nil {
		return fmt.Errorf("dcpsig: %w", err)
	}
	leaf := ordered[0]

	root := doc.Root()
	if root == nil {
		return errors.New("dcpsig: document has no root element")
	}

	signerEl := root.CreateElement("Signer")
	x509Issuer := signerEl.CreateElement("X509IssuerName")
	x509Issuer.SetText(leaf.Issuer.String())
	x509Serial := signerEl.CreateElement("X509SerialNumber")
	x509Serial.SetText(leaf.SerialNumber.String())
	signerEl.CreateElement("X509SubjectName").SetText(leaf.Subject.String())

	digestURI, sigURI, hash := digestAlgorithmFor(dialect)

	sigEl := root.CreateElement("Signature")
	sigEl.CreateAttr("xmlns", xmldsigNS)

	signedInfo := sigEl.CreateElement("SignedInfo")
	canonMethod := signedInfo.CreateElement("CanonicalizationMethod")
	canonMethod.CreateAttr("Algorithm", c14nAlgURI)
	sigMethod := signedInfo.CreateElement("SignatureMethod")
	sigMethod.CreateAttr("Algorithm", sigURI)

	reference := signedInfo.CreateElement("Reference")
	reference.CreateAttr("URI", "")
	transforms := reference.CreateElement("Transforms")
	transform := transforms.CreateElement("Transform")
	transform.CreateAttr("Algorithm", envSigURI)
	digestMethod := reference.CreateElement("DigestMethod")
	digestMethod.CreateAttr("Algorithm", digestURI)
	digestValue := reference.CreateElement("DigestValue")

	// Digest the document with the <Signature> element itself excised,
	// per the enveloped-signature transform (the transform's whole
	// purpose is to let a signature be embedded in the document it signs
	// without the signature covering itself).
	docDigest, err := canonicalExcludingSignature(doc)
	if err != nil {
		return err
	}
	digestValue.SetText(base64.StdEncoding.EncodeToString(sum(hash, docDigest)))

	// Canonicalize SignedInfo alone and sign it.
	signedInfoBytes, err := canonicalElement(signedInfo)
	if err != nil {
		return err
	}
	signature, err := rsa.SignPKCS1v15(rand.Reader, chain.PrivateKey, hash, sum(hash, signedInfoBytes))
	if err != nil {
		return fmt.Errorf("dcpsig: %w", err)
	}

	sigEl.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(signature))

	keyInfo := sigEl.CreateElement("KeyInfo")
	x509Data := keyInfo.CreateElement("X509Data")
	for _, cert := range ordered {
		x509Data.CreateElement("X509Certificate").SetText(base64.StdEncoding.EncodeToString(cert.Raw))
	}

	return nil
}

// canonicalElement serializes a single element subtree canonically.
func canonicalElement(el *etree.Element) ([]byte, error) {
	scratch := etree.NewDocument()
	scratch.SetRoot(el.Copy())
	scratch.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	var buf []byte
	w := &sliceWriter{&buf}
	if _, err := scratch.WriteTo(w); err != nil {
		return nil, err
	}
	return buf, nil
}

// canonicalExcludingSignature canonicalizes a copy of doc with its root's
// <Signature> child (if any) removed, implementing the
// enveloped-signature transform: the signature never covers itself,
// which is what lets it be re-read and re-verified after being embedded
// in the very document it signs.
func canonicalExcludingSignature(doc *xmlcodec.Document) ([]byte, error) {
	scratch := etree.NewDocument()
	scratch.SetRoot(doc.Root().Copy())
	if sig := scratch.Root().FindElement("Signature"); sig != nil {
		scratch.Root().RemoveChild(sig)
	}
	scratch.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	var buf []byte
	w := &sliceWriter{&buf}
	if _, err := scratch.WriteTo(w); err != nil {
		return nil, err
	}
	return buf, nil
}

type sliceWriter struct{ buf *[]byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Verify checks the RSA signature over the canonicalized SignedInfo using
// the leaf certificate's public key, then recomputes the digest over the
// canonicalized document with its <Signature> element removed (the same
// enveloped-signature transform Sign applies) and compares it against the
// embedded DigestValue. If chain is nil, the certificate chain embedded in the
// document's KeyInfo/X509Data is parsed and validated first.
func Verify(doc *xmlcodec.Document, chain *dcpcert.Chain) error {
	root := doc.Root()
	if root == nil {
		return errors.New("dcpsig: document has no root element")
	}
	sigEl := root.FindElement("Signature")
	if sigEl == nil {
		return errors.New("dcpsig: no Signature element found")
	}
	signedInfo := sigEl.FindElement("SignedInfo")
	if signedInfo == nil {
		return errors.New("dcpsig: no SignedInfo element found")
	}
	digestValueEl := signedInfo.FindElement("Reference/DigestValue")
	sigValueEl := sigEl.FindElement("SignatureValue")
	sigMethodEl := signedInfo.FindElement("SignatureMethod")
	if digestValueEl == nil || sigValueEl == nil || sigMethodEl == nil {
		return errors.New("dcpsig: malformed Signature element")
	}

	hash := crypto.SHA1
	if sigMethodEl.SelectAttrValue("Algorithm", "") == "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256" {
		hash = crypto.SHA256
	}

	if chain == nil {
		parsed, err := ParseEmbeddedChain(sigEl)
		if err != nil {
			return err
		}
		chain = parsed
		var reason string
		if !chain.Valid(&reason) {
			return fmt.Errorf("dcpsig: embedded chain invalid: %s", reason)
		}
	}
	leaf, err := chain.Leaf()
	if err != nil {
		return err
	}
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return errors.New("dcpsig: leaf certificate has no RSA public key")
	}

	signedInfoBytes, err := canonicalElement(signedInfo)
	if err != nil {
		return err
	}
	sigBytes, err := base64.StdEncoding.DecodeString(sigValueEl.Text())
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(pub, hash, sum(hash, signedInfoBytes), sigBytes); err != nil {
		return ErrSignatureInvalid
	}

	envelopeDigest, err := canonicalExcludingSignature(doc)
	if err != nil {
		return err
	}
	wantDigest, err := base64.StdEncoding.DecodeString(digestValueEl.Text())
	if err != nil {
		return err
	}
	gotDigest := sum(hash, envelopeDigest)
	if !bytesEqual(gotDigest, wantDigest) {
		return ErrSignatureInvalid
	}

	return nil
}

// ParseEmbeddedChain reads the certificate chain out of a <Signature>
// element's <KeyInfo>/<X509Data>/<X509Certificate> children.
func ParseEmbeddedChain(sigEl *etree.Element) (*dcpcert.Chain, error) {
	x509Data := sigEl.FindElement("KeyInfo/X509Data")
	if x509Data == nil {
		return nil, errors.New("dcpsig: no KeyInfo/X509Data present")
	}
	chain := &dcpcert.Chain{}
	for _, certEl := range x509Data.SelectElements("X509Certificate") {
		der, err := base64.StdEncoding.DecodeString(certEl.Text())
		if err != nil {
			return nil, err
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		chain.Add(cert)
	}
	if len(chain.Certificates) == 0 {
		return nil, errors.New("dcpsig: no certificates found in X509Data")
	}
	return chain, nil
}
