// Package digest computes the SHA-1/base64 digests and key fingerprints
// used across the content-integrity pipeline (spec.md C2).
package digest

import (
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // DCP integrity hashing is specified as SHA-1.
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"io"
	"os"
	"strings"
)

// DefaultBufferSize is the read buffer used by File, matching the 64 KiB
// chunking the format's digest loop is specified to use.
const DefaultBufferSize = 64 * 1024

// ErrCancelled is returned when a progress callback requests cancellation.
var ErrCancelled = errors.New("digest: cancelled by progress callback")

// File streams path, SHA-1 digesting it bufSize bytes at a time, and
// returns the base64-encoded digest. progress, if non-nil, is called at
// least once per buffer read with the fraction of the file read so far;
// returning false from progress cancels the operation.
func File(path string, bufSize int, progress func(fraction float64) bool) (string, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()

	h := sha1.New() //nolint:gosec
	buf := make([]byte, bufSize)
	var done int64

	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			done += int64(n)
			if progress != nil {
				frac := 1.0
				if size > 0 {
					frac = float64(done) / float64(size)
				}
				if !progress(frac) {
					return "", ErrCancelled
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
	}

	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the base64-encoded SHA-1 digest of b, used for manifest
// documents that are hashed in memory rather than streamed from disk.
func Bytes(b []byte) string {
	sum := sha1.Sum(b) //nolint:gosec
	return base64.StdEncoding.EncodeToString(sum[:])
}

// PrivateKeyFingerprint strips the PEM armor from key, SHA-1 digests the
// raw DER, and returns the base64-encoded result.
func PrivateKeyFingerprint(pemBytes []byte) (string, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return "", errors.New("digest: no PEM block found")
	}
	sum := sha1.Sum(block.Bytes) //nolint:gosec
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// spkiHeaderSkip is the number of leading bytes of a 2048-bit RSA
// SubjectPublicKeyInfo DER encoding skipped before hashing, per the
// dnQualifier convention DCP certificates use. The original source marks
// this "for reasons that are not entirely clear"; it reflects the fixed
// ASN.1 header preceding the modulus/exponent for 2048-bit RSA keys and
// is not portable to other key sizes or algorithms (spec.md §9).
const spkiHeaderSkip = 24

// PublicKeyDigest computes the dnQualifier-form digest of priv's public
// key: marshal the SubjectPublicKeyInfo, skip the fixed RSA-2048 header,
// SHA-1 the remainder, base64-encode, and escape "/" to "\/" so the value
// is safe to embed in a certificate subject's dnQualifier attribute.
func PublicKeyDigest(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", err
	}
	if len(der) <= spkiHeaderSkip {
		return "", errors.New("digest: SubjectPublicKeyInfo shorter than expected header")
	}
	sum := sha1.Sum(der[spkiHeaderSkip:]) //nolint:gosec
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	return strings.ReplaceAll(encoded, "/", `\/`), nil
}
