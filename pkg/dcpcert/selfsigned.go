package dcpcert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/mart-jansink/libdcp/pkg/digest"
)

// notBefore anchors the validity period of every self-signed certificate
// generated in a process to the moment the package was loaded.
var notBefore = time.Now()

// SelfSignedConfig names the organisation and common names used to build
// a throwaway root/intermediate/leaf chain, matching the fields the
// original implementation's shell-out builder accepted.
type SelfSignedConfig struct {
	Organisation           string
	OrganisationalUnit     string
	RootCommonName         string
	IntermediateCommonName string
	LeafCommonName         string

	// KeyBits is the RSA modulus size for every certificate in the
	// chain. Defaults to 2048 if zero.
	KeyBits int
}

// bits returns the configured key size or the default.
func (c SelfSignedConfig) bits() int {
	if c.KeyBits <= 0 {
		return 2048
	}
	return c.KeyBits
}

// NewSelfSigned builds a fresh root/intermediate/leaf certificate chain
// entirely in-process (spec.md's Design Note: replaces the original's
// `openssl` shell-out with native crypto/x509, eliminating process
// control, quoting, and locale bugs while producing the same resulting
// certificates: serials 5/6/7, path-len constraints 3/2/none, and the
// key usages SMPTE 430-2 requires). It returns a Chain containing all
// three certificates plus the leaf's private key.
func NewSelfSigned(cfg SelfSignedConfig) (*Chain, *rsa.PrivateKey, error) {
	rootKey, rootCert, err := makeCA(cfg, cfg.RootCommonName, big.NewInt(5), 3, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dcpcert: generating root: %w", err)
	}

	interKey, interCert, err := makeCA(cfg, cfg.IntermediateCommonName, big.NewInt(6), 2, rootCert, rootKey)
	if err != nil {
		return nil, nil, fmt.Errorf("dcpcert: generating intermediate: %w", err)
	}

	leafKey, leafCert, err := makeLeaf(cfg, big.NewInt(7), interCert, interKey)
	if err != nil {
		return nil, nil, fmt.Errorf("dcpcert: generating leaf: %w", err)
	}

	chain := &Chain{
		Certificates: []*x509.Certificate{rootCert, interCert, leafCert},
		PrivateKey:   leafKey,
	}
	return chain, leafKey, nil
}

// dnQualifiedSubject builds the pkix.Name used for every certificate in
// the self-signed chain, with dnQualifier set to the SHA-1/escaped digest
// of the certificate's own public key (spec.md C2's public_key_digest).
func dnQualifiedSubject(cfg SelfSignedConfig, commonName string, key *rsa.PrivateKey) (pkix.Name, error) {
	qualifier, err := digest.PublicKeyDigest(key)
	if err != nil {
		return pkix.Name{}, err
	}
	return pkix.Name{
		Organization:       []string{cfg.Organisation},
		OrganizationalUnit: []string{cfg.OrganisationalUnit},
		CommonName:         commonName,
		Names: []pkix.AttributeTypeAndValue{{
			Type:  []int{2, 5, 4, 46}, // dnQualifier
			Value: qualifier,
		}},
	}, nil
}

// makeCA generates a CA certificate (root if parent is nil, otherwise an
// intermediate signed by parent/parentKey) with the basicConstraints
// path-length and keyUsage the original's OpenSSL config files set.
func makeCA(cfg SelfSignedConfig, commonName string, serial *big.Int, pathLen int, parent *x509.Certificate, parentKey *rsa.PrivateKey) (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, cfg.bits())
	if err != nil {
		return nil, nil, err
	}

	subject, err := dnQualifiedSubject(cfg, commonName, key)
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             notBefore,
		NotAfter:              notBefore.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            pathLen,
		MaxPathLenZero:        pathLen == 0,
	}

	signer := template
	signerKey := key
	if parent != nil {
		signer = parent
		signerKey = parentKey
		template.Issuer = parent.Subject
	} else {
		template.Issuer = subject
	}

	der, err := x509.CreateCertificate(rand.Reader, template, signer, &key.PublicKey, signerKey)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}

// makeLeaf generates the end-entity certificate, signed by the
// intermediate, with the digitalSignature/keyEncipherment usage SMPTE
// 430-2 requires of a DCP signer certificate.
func makeLeaf(cfg SelfSignedConfig, serial *big.Int, parent *x509.Certificate, parentKey *rsa.PrivateKey) (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, cfg.bits())
	if err != nil {
		return nil, nil, err
	}

	subject, err := dnQualifiedSubject(cfg, cfg.LeafCommonName, key)
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		Issuer:                parent.Subject,
		NotBefore:             notBefore,
		NotAfter:              notBefore.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
		IsCA:                  false,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}
