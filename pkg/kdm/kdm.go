// Package kdm defines the boundary between the core and KDM (Key Delivery
// Message) issuance, which spec.md §1 treats as an external collaborator:
// the core never builds or signs a KDM, it only consumes an
// already-decrypted {cpl_id, key_id, key_bytes} triple set supplied by one.
package kdm

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mart-jansink/libdcp/pkg/dcpid"
)

// MinRSAKeySize is the minimum RSA key size KDM key blocks are wrapped
// with.
const MinRSAKeySize = 2048

var (
	ErrRSAKeyTooSmall = errors.New("kdm: RSA key size too small: minimum 2048 bits required")
	ErrRSADecryption  = errors.New("kdm: RSA-OAEP decryption failed")
)

// KeyTriple is one decrypted per-asset key a KDM delivers: the asset's
// KeyId and the raw symmetric key bytes to apply to it.
type KeyTriple struct {
	KeyID    dcpid.Identifier
	KeyBytes []byte
}

// DecryptedKDM is the result of an external collaborator parsing,
// validating the recipient certificate chain for, and decrypting a KDM.
// The core's only KDM-shaped operation, CPL.AddKDM, consumes this type
// directly (spec.md §4.6's "KDM application").
type DecryptedKDM struct {
	CPLID dcpid.Identifier
	Keys  []KeyTriple
}

// Source is the external-collaborator boundary a caller implements to
// supply decrypted KDMs for a CPL, keeping KDM issuance and recipient
// trust decisions entirely outside the core (spec.md §1 Non-goals).
type Source interface {
	KDMFor(cplID dcpid.Identifier) (DecryptedKDM, error)
}

// UnwrapKeyBlock recovers a single per-asset key from an RSA-OAEP/SHA-256
// encrypted key block, for a caller that has already parsed a KDM's XML
// container and recipient certificate chain and only needs the final
// unwrap step. The KDM container format itself — its own XML schema,
// signature, and recipient-targeting — is not implemented here; that
// parsing is the external collaborator's responsibility.
func UnwrapKeyBlock(block []byte, recipientKey *rsa.PrivateKey) ([]byte, error) {
	if recipientKey == nil {
		return nil, errors.New("kdm: recipient private key is nil")
	}
	if recipientKey.Size()*8 < MinRSAKeySize {
		return nil, ErrRSAKeyTooSmall
	}

	hash := sha256.New()
	label := []byte{}

	key, err := rsa.DecryptOAEP(hash, rand.Reader, recipientKey, block, label)
	if err != nil {
		return nil, ErrRSADecryption
	}
	return key, nil
}

// WrapKeyBlock is the inverse of UnwrapKeyBlock, used by tests and by any
// caller constructing a KDM key block for a known recipient public key.
func WrapKeyBlock(key []byte, recipientPublicKey *rsa.PublicKey) ([]byte, error) {
	if recipientPublicKey == nil {
		return nil, errors.New("kdm: recipient public key is nil")
	}
	if recipientPublicKey.Size()*8 < MinRSAKeySize {
		return nil, ErrRSAKeyTooSmall
	}

	hash := sha256.New()
	label := []byte{}

	wrapped, err := rsa.EncryptOAEP(hash, rand.Reader, recipientPublicKey, key, label)
	if err != nil {
		return nil, fmt.Errorf("kdm: RSA-OAEP encryption failed: %w", err)
	}
	return wrapped, nil
}

// KeyByID looks up the key bytes for keyID among k's triples.
func (k DecryptedKDM) KeyByID(keyID dcpid.Identifier) ([]byte, bool) {
	for _, t := range k.Keys {
		if t.KeyID.Equal(keyID) {
			return t.KeyBytes, true
		}
	}
	return nil, false
}
