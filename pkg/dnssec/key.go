// Package dnssec produces RRSIG signatures and NSEC denial-of-existence
// chains over a canonically ordered zone.
package dnssec

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // SHA1 required for DNSSEC per RFC 4034
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"os"

	"github.com/miekg/dns"
)

// Key errors.
var (
	ErrUnsupportedAlgorithm = errors.New("unsupported DNSSEC algorithm")
	ErrNoDNSKEY             = errors.New("key file contains no DNSKEY record")
	ErrKeyTypeMismatch      = errors.New("private key type does not match algorithm")
)

// SigningKey is the capability a signer needs from a key. Software keys,
// hardware tokens, and remote signing services implement it uniformly; all
// failures are opaque to the signing core and simply propagated.
type SigningKey interface {
	// Algorithm returns the DNSSEC algorithm identifier of the key.
	Algorithm() (uint8, error)

	// KeyTag returns the RFC 4034 Appendix B key tag of the key.
	KeyTag() (uint16, error)

	// Sign signs the given message and returns the raw signature bytes.
	Sign(msg []byte) ([]byte, error)

	// DNSKEY returns the public key as a publishable DNSKEY record.
	DNSKEY() (*dns.DNSKEY, error)

	// DS returns the delegation signer digest record for the given owner.
	DS(owner string) (*dns.DS, error)
}

// SoftKey is a SigningKey backed by in-memory key material.
type SoftKey struct {
	dnskey *dns.DNSKEY
	priv   crypto.PrivateKey
}

// NewSoftKey creates a SoftKey from a DNSKEY record and its private key.
func NewSoftKey(dnskey *dns.DNSKEY, priv crypto.PrivateKey) *SoftKey {
	return &SoftKey{dnskey: dnskey, priv: priv}
}

// GenerateKey generates a fresh key for the given owner. The flags value is
// 256 for a zone signing key or 257 for a key signing key. The bit size is
// ignored for ED25519 and fixed by the curve for the ECDSA algorithms.
func GenerateKey(owner string, flags uint16, algorithm uint8, bits int, ttl uint32) (*SoftKey, error) {
	switch algorithm {
	case dns.ECDSAP256SHA256:
		bits = 256
	case dns.ECDSAP384SHA384:
		bits = 384
	case dns.ED25519:
		bits = 256
	case dns.RSASHA1, dns.RSASHA256, dns.RSASHA512:
		// Caller-chosen modulus size.
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, algorithm)
	}

	dnskey := &dns.DNSKEY{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(owner),
			Rrtype: dns.TypeDNSKEY,
			Class:  dns.ClassINET,
			Ttl:    ttl,
		},
		Flags:     flags,
		Protocol:  3,
		Algorithm: algorithm,
	}

	priv, err := dnskey.Generate(bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return NewSoftKey(dnskey, priv), nil
}

// ReadKeyFiles loads a key pair from BIND-format key files: the .key file
// holding the DNSKEY record and the .private file holding the private key.
func ReadKeyFiles(pubFile, privFile string) (*SoftKey, error) {
	pub, err := os.Open(pubFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open public key file: %w", err)
	}
	defer pub.Close()

	var dnskey *dns.DNSKEY
	zp := dns.NewZoneParser(pub, "", pubFile)
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		if k, isKey := rr.(*dns.DNSKEY); isKey {
			dnskey = k

			break
		}
	}
	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse public key file: %w", err)
	}
	if dnskey == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDNSKEY, pubFile)
	}

	priv, err := os.Open(privFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open private key file: %w", err)
	}
	defer priv.Close()

	privKey, err := dnskey.ReadPrivateKey(priv, privFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key file: %w", err)
	}

	return NewSoftKey(dnskey, privKey), nil
}

// Algorithm returns the key's DNSSEC algorithm identifier.
func (k *SoftKey) Algorithm() (uint8, error) {
	return k.dnskey.Algorithm, nil
}

// KeyTag returns the key's RFC 4034 Appendix B key tag.
func (k *SoftKey) KeyTag() (uint16, error) {
	return k.dnskey.KeyTag(), nil
}

// DNSKEY returns a copy of the published DNSKEY record.
func (k *SoftKey) DNSKEY() (*dns.DNSKEY, error) {
	cp, ok := dns.Copy(k.dnskey).(*dns.DNSKEY)
	if !ok {
		return nil, errors.New("failed to copy DNSKEY record")
	}

	return cp, nil
}

// DS returns the SHA-256 delegation signer record for the given owner.
func (k *SoftKey) DS(owner string) (*dns.DS, error) {
	cp, err := k.DNSKEY()
	if err != nil {
		return nil, err
	}
	cp.Hdr.Name = dns.Fqdn(owner)

	ds := cp.ToDS(dns.SHA256)
	if ds == nil {
		return nil, fmt.Errorf("%w: cannot digest algorithm %d", ErrUnsupportedAlgorithm, cp.Algorithm)
	}

	return ds, nil
}

// Sign signs msg per the key's algorithm and returns the raw signature
// bytes: PKCS#1 v1.5 for the RSA algorithms, R||S per RFC 6605 for ECDSA,
// and a pure Ed25519 signature per RFC 8080.
func (k *SoftKey) Sign(msg []byte) ([]byte, error) {
	switch k.dnskey.Algorithm {
	case dns.RSASHA1:
		return k.signRSA(msg, crypto.SHA1, sha1.New()) //nolint:gosec // RFC 4034
	case dns.RSASHA256:
		return k.signRSA(msg, crypto.SHA256, sha256.New())
	case dns.RSASHA512:
		return k.signRSA(msg, crypto.SHA512, sha512.New())
	case dns.ECDSAP256SHA256:
		return k.signECDSA(msg, sha256.New(), 32)
	case dns.ECDSAP384SHA384:
		return k.signECDSA(msg, sha512.New384(), 48)
	case dns.ED25519:
		priv, ok := k.priv.(ed25519.PrivateKey)
		if !ok {
			return nil, ErrKeyTypeMismatch
		}

		return ed25519.Sign(priv, msg), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, k.dnskey.Algorithm)
	}
}

func (k *SoftKey) signRSA(msg []byte, hashAlgo crypto.Hash, h hash.Hash) ([]byte, error) {
	priv, ok := k.priv.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrKeyTypeMismatch
	}

	h.Write(msg)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, hashAlgo, h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("RSA signing failed: %w", err)
	}

	return sig, nil
}

func (k *SoftKey) signECDSA(msg []byte, h hash.Hash, coordSize int) ([]byte, error) {
	priv, ok := k.priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, ErrKeyTypeMismatch
	}

	h.Write(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv, h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("ECDSA signing failed: %w", err)
	}

	// Fixed-width R || S, each left-padded to the curve's coordinate size.
	sig := make([]byte, 2*coordSize)
	r.FillBytes(sig[:coordSize])
	s.FillBytes(sig[coordSize:])

	return sig, nil
}

// PublicKeyString returns the DNSKEY record in presentation format, suitable
// for a BIND .key file.
func (k *SoftKey) PublicKeyString() string {
	return k.dnskey.String()
}

// PrivateKeyString returns the private key in BIND .private format.
func (k *SoftKey) PrivateKeyString() string {
	return k.dnskey.PrivateKeyString(k.priv)
}

// encodeSignature converts raw signature bytes to the base64 form carried in
// an RRSIG record.
func encodeSignature(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}
