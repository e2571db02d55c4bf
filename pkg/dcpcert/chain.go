// Package dcpcert implements the X.509 certificate chain used to sign and
// verify DCP manifests (spec.md C3). Chains are an unordered multiset of
// certificates plus an optional private key; RootToLeaf/LeafToRoot derive
// an ordering by walking the issuer/subject graph rather than searching
// permutations (spec.md §9's recommended redesign).
package dcpcert

import (
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
)

// Chain is an unordered set of certificates plus an optional private key
// for the leaf certificate.
type Chain struct {
	Certificates []*x509.Certificate
	PrivateKey   *rsa.PrivateKey
}

// ErrNotAChain is returned when no ordering of the chain's certificates
// forms a valid issuer-to-subject path.
var ErrNotAChain = errors.New("dcpcert: certificates do not form a chain")

// ErrKeyMismatch is returned when the chain's private key does not match
// the leaf certificate's public key.
var ErrKeyMismatch = errors.New("dcpcert: private key does not match leaf certificate")

// Add appends a certificate to the chain.
func (c *Chain) Add(cert *x509.Certificate) {
	c.Certificates = append(c.Certificates, cert)
}

// subjectKey returns a stable string key for a certificate's subject DN.
func subjectKey(name pkix.Name) string {
	return name.String()
}

// RootToLeaf returns the certificates ordered from the root authority down
// to the leaf (end-entity) certificate, built by walking the issuer DN ->
// certificate graph starting from the self-signed root or, if there is
// none, from the first certificate that is nobody's child. If every
// certificate is someone's child, ErrNotAChain is returned.
func (c *Chain) RootToLeaf() ([]*x509.Certificate, error) {
	ordered, err := c.orderChain()
	if err != nil {
		return nil, err
	}
	return ordered, nil
}

// LeafToRoot is RootToLeaf in reverse order.
func (c *Chain) LeafToRoot() ([]*x509.Certificate, error) {
	ordered, err := c.orderChain()
	if err != nil {
		return nil, err
	}
	reversed := make([]*x509.Certificate, len(ordered))
	for i, cert := range ordered {
		reversed[len(ordered)-1-i] = cert
	}
	return reversed, nil
}

// Leaf returns the end-entity certificate (the last entry in RootToLeaf
// order). For a single-certificate chain that certificate is the leaf.
func (c *Chain) Leaf() (*x509.Certificate, error) {
	ordered, err := c.orderChain()
	if err != nil {
		return nil, err
	}
	return ordered[len(ordered)-1], nil
}

// orderChain builds a subject-DN -> certificate index and an issuer-DN ->
// child-certificate adjacency map, then walks from the root (the
// certificate whose issuer equals its own subject, i.e. self-signed) down
// to the certificate nothing else's issuer DN points at (the leaf).
func (c *Chain) orderChain() ([]*x509.Certificate, error) {
	if len(c.Certificates) == 0 {
		return nil, nil
	}

	bySubject := make(map[string]*x509.Certificate, len(c.Certificates))
	byIssuer := make(map[string][]*x509.Certificate, len(c.Certificates))
	for _, cert := range c.Certificates {
		bySubject[subjectKey(cert.Subject)] = cert
		byIssuer[subjectKey(cert.Issuer)] = append(byIssuer[subjectKey(cert.Issuer)], cert)
	}

	var root *x509.Certificate
	for _, cert := range c.Certificates {
		if subjectKey(cert.Issuer) == subjectKey(cert.Subject) {
			root = cert
			break
		}
	}
	if root == nil {
		// No self-signed root present (e.g. an intermediate-only chain
		// fed to us): fall back to whichever certificate is not anyone's
		// child, so a valid chain can still be assembled.
		isChild := make(map[string]bool, len(c.Certificates))
		for _, cert := range c.Certificates {
			if _, ok := bySubject[subjectKey(cert.Issuer)]; ok && subjectKey(cert.Issuer) != subjectKey(cert.Subject) {
				isChild[subjectKey(cert.Subject)] = true
			}
		}
		for _, cert := range c.Certificates {
			if !isChild[subjectKey(cert.Subject)] {
				root = cert
				break
			}
		}
	}
	if root == nil {
		return nil, ErrNotAChain
	}

	ordered := []*x509.Certificate{root}
	current := root
	seen := map[string]bool{subjectKey(root.Subject): true}
	for len(ordered) < len(c.Certificates) {
		children := byIssuer[subjectKey(current.Subject)]
		var next *x509.Certificate
		for _, child := range children {
			if child == current {
				continue
			}
			if seen[subjectKey(child.Subject)] {
				continue
			}
			next = child
			break
		}
		if next == nil {
			return nil, ErrNotAChain
		}
		ordered = append(ordered, next)
		seen[subjectKey(next.Subject)] = true
		current = next
	}

	if !chainValid(ordered) {
		return nil, ErrNotAChain
	}

	return ordered, nil
}

// chainValid checks, for each adjacent (parent, child) pair in a
// root-to-leaf ordered slice, that the child's issuer DN equals the
// parent's subject DN, that the child's subject DN differs from the
// parent's, and that the parent's signature verifies the child. Checking
// the DNs in addition to the raw signature rejects pathological chains
// that verify cryptographically but do not form a linear path.
func chainValid(ordered []*x509.Certificate) bool {
	for i := 0; i+1 < len(ordered); i++ {
		parent, child := ordered[i], ordered[i+1]
		if subjectKey(child.Issuer) != subjectKey(parent.Subject) {
			return false
		}
		if subjectKey(child.Subject) == subjectKey(parent.Subject) {
			return false
		}
		if err := child.CheckSignatureFrom(parent); err != nil {
			return false
		}
	}
	return true
}

// Valid reports whether the chain forms a valid root-to-leaf path and, if
// a private key is present, that it matches the leaf certificate. On
// failure, reason (if non-nil) is set to a human-readable explanation.
func (c *Chain) Valid(reason *string) bool {
	ordered, err := c.orderChain()
	if err != nil {
		if reason != nil {
			*reason = err.Error()
		}
		return false
	}
	if len(ordered) > 0 && !chainValid(ordered) {
		if reason != nil {
			*reason = ErrNotAChain.Error()
		}
		return false
	}
	if !c.PrivateKeyValid() {
		if reason != nil {
			*reason = ErrKeyMismatch.Error()
		}
		return false
	}
	return true
}

// PrivateKeyValid compares the RSA modulus of PrivateKey against the leaf
// certificate's public key. An empty chain or a chain without a private
// key is trivially valid, mirroring the original implementation.
func (c *Chain) PrivateKeyValid() bool {
	if len(c.Certificates) == 0 {
		return true
	}
	if c.PrivateKey == nil {
		return true
	}

	leaf, err := c.Leaf()
	if err != nil {
		return false
	}
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false
	}

	return c.PrivateKey.PublicKey.N.Cmp(pub.N) == 0
}

// String renders the chain for diagnostic output, root first.
func (c *Chain) String() string {
	ordered, err := c.orderChain()
	if err != nil {
		return fmt.Sprintf("<invalid chain: %v>", err)
	}
	s := ""
	for i, cert := range ordered {
		if i > 0 {
			s += " -> "
		}
		s += cert.Subject.CommonName
	}
	return s
}
