// Package dcpid implements the identifiers used throughout a DCP: every
// manifest-visible entity (asset, reel, CPL, PKL, ASSETMAP) owns one.
package dcpid

import (
	"strings"

	"github.com/google/uuid"
)

// Identifier is a UUID rendered as the "urn:uuid:<hex>" form used in DCP
// XML documents. Equality is case-insensitive on the hex portion.
type Identifier string

// New generates a fresh random (v4) identifier.
func New() Identifier {
	return Identifier("urn:uuid:" + uuid.New().String())
}

// Parse builds an Identifier from a bare UUID string or an existing
// "urn:uuid:" form, validating it is a well-formed UUID.
func Parse(s string) (Identifier, error) {
	hex := strings.TrimPrefix(s, "urn:uuid:")
	id, err := uuid.Parse(hex)
	if err != nil {
		return "", err
	}
	return Identifier("urn:uuid:" + id.String()), nil
}

// Hex returns the identifier without the "urn:uuid:" prefix, lower-cased.
func (i Identifier) Hex() string {
	return strings.ToLower(strings.TrimPrefix(string(i), "urn:uuid:"))
}

// String returns the canonical "urn:uuid:<hex>" form.
func (i Identifier) String() string {
	return "urn:uuid:" + i.Hex()
}

// Equal compares two identifiers case-insensitively on their hex value.
func (i Identifier) Equal(other Identifier) bool {
	return i.Hex() == other.Hex()
}

// IsZero reports whether the identifier has never been set.
func (i Identifier) IsZero() bool {
	return i == ""
}
