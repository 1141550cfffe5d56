// Package identity implements the router identity structure used to
// authenticate SSU2 peers: a 384-byte key block followed by a certificate
// that declares the signing-key and public-key kinds.
//
// https://geti2p.net/spec/common-structures#routeridentity
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/go-i2p/common/certificate"
	"github.com/go-i2p/common/key_certificate"
	"github.com/go-i2p/common/keys_and_cert"
	"github.com/go-i2p/crypto/dsa"
	"github.com/go-i2p/crypto/ecdsa"
	"github.com/go-i2p/crypto/ed25519"
	"github.com/go-i2p/crypto/types"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-ssu2/lib/common/base64"
)

var log = logger.GetGoI2PLogger()

const (
	// DataSize is the certificate-independent key block: public key (256),
	// then padding and signing public key filling the rest.
	DataSize = keys_and_cert.KEYS_AND_CERT_DATA_SIZE // 384

	// MinSize is the smallest valid serialization: the key block followed by
	// a null certificate (1-byte kind + 2-byte length).
	MinSize = keys_and_cert.KEYS_AND_CERT_MIN_SIZE // 387

	// KeyCertSize is the serialized length with a key certificate, whose
	// 4-byte payload declares the signing- and public-key kinds.
	KeyCertSize = 391

	// keyCertPayloadLen is the payload length a key certificate must declare.
	keyCertPayloadLen = 4
)

var (
	ErrTooShort           = oops.New("not enough bytes in router identity")
	ErrUnknownCertificate = oops.New("unsupported certificate kind for router identity")
	ErrUnknownSigningKey  = oops.New("unsupported signing key kind for router identity")
	ErrUnknownPublicKey   = oops.New("unsupported public key kind for router identity")
)

// RouterID is the content-addressed identifier of a router: the I2P-base64
// encoding of the SHA-256 digest of the serialized identity. The zero value
// means the peer's identity is not (yet) known.
type RouterID string

// Known reports whether the ID carries an actual identity.
func (id RouterID) Known() bool {
	return id != ""
}

// String returns a short form suitable for logging.
func (id RouterID) String() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// RouterIdentity is a parsed, validated router identity.
//
// The serialized form is kept verbatim so that re-serialization is
// byte-exact, which the identity hash depends on.
type RouterIdentity struct {
	id            RouterID
	hash          [sha256.Size]byte
	serialized    []byte
	verifyingKey  types.SigningPublicKey
	signingKeyLen int
	privateKeyLen int
}

// New builds a router identity from an Ed25519 verifying key, using a key
// certificate declaring Ed25519 signing and X25519 public keys. The key
// block in front of the signing key is filled with random padding.
func New(verifyingKey ed25519.Ed25519PublicKey) (*RouterIdentity, error) {
	if len(verifyingKey) != key_certificate.KEYCERT_SIGN_ED25519_SIZE {
		return nil, oops.Errorf("bad ed25519 verifying key length: %d", len(verifyingKey))
	}

	serialized := make([]byte, 0, KeyCertSize)
	padding := make([]byte, DataSize-key_certificate.KEYCERT_SIGN_ED25519_SIZE)
	if _, err := rand.Read(padding); err != nil {
		return nil, oops.Wrapf(err, "generating identity padding")
	}

	serialized = append(serialized, padding...)
	serialized = append(serialized, verifyingKey...)
	serialized = append(serialized, byte(certificate.CERT_KEY))
	serialized = binary.BigEndian.AppendUint16(serialized, keyCertPayloadLen)
	serialized = binary.BigEndian.AppendUint16(serialized, key_certificate.KEYCERT_SIGN_ED25519)
	serialized = binary.BigEndian.AppendUint16(serialized, key_certificate.KEYCERT_CRYPTO_X25519)

	hash := sha256.Sum256(serialized)

	return &RouterIdentity{
		id:            RouterID(base64.EncodeToString(hash[:])),
		hash:          hash,
		serialized:    serialized,
		verifyingKey:  verifyingKey,
		signingKeyLen: key_certificate.KEYCERT_SIGN_ED25519_SIZE,
		privateKeyLen: key_certificate.KEYCERT_CRYPTO_X25519_SIZE,
	}, nil
}

// ReadRouterIdentity parses a router identity from the front of data and
// returns the remaining bytes.
//
// A null certificate implies legacy ElGamal/DSA-SHA1 key sizes; the key
// block is not further validated in that case, matching the historical
// behavior of the structure. A key certificate must declare a known signing
// and public key kind.
func ReadRouterIdentity(data []byte) (*RouterIdentity, []byte, error) {
	if len(data) < MinSize {
		log.WithFields(logger.Fields{
			"input_length": len(data),
		}).Warn("not enough bytes in router identity")
		return nil, nil, ErrTooShort
	}

	certKind := int(data[DataSize])
	certLen := binary.BigEndian.Uint16(data[DataSize+1 : DataSize+3])

	var (
		verifyingKey  types.SigningPublicKey
		signingKeyLen int
		privateKeyLen int
		totalLen      int
	)

	switch {
	case certKind == certificate.CERT_NULL:
		var key dsa.DSAPublicKey
		copy(key[:], data[DataSize-key_certificate.KEYCERT_SIGN_DSA_SHA1_SIZE:DataSize])

		verifyingKey = key
		signingKeyLen = key_certificate.KEYCERT_SIGN_DSA_SHA1_SIZE
		privateKeyLen = key_certificate.KEYCERT_CRYPTO_ELG_SIZE
		totalLen = MinSize

	case certKind == certificate.CERT_KEY && certLen == keyCertPayloadLen:
		if len(data) < KeyCertSize {
			return nil, nil, ErrTooShort
		}

		signingKeyKind := binary.BigEndian.Uint16(data[DataSize+3 : DataSize+5])
		publicKeyKind := binary.BigEndian.Uint16(data[DataSize+5 : DataSize+7])

		switch signingKeyKind {
		case key_certificate.KEYCERT_SIGN_DSA_SHA1:
			// DSA-SHA1 belongs to the null-certificate legacy path.
			log.Warn("dsa-sha1 signing key but not null certificate")
			return nil, nil, ErrUnknownSigningKey
		case key_certificate.KEYCERT_SIGN_P256:
			var key ecdsa.ECP256PublicKey
			copy(key[:], data[DataSize-key_certificate.KEYCERT_SIGN_P256_SIZE:DataSize])
			verifyingKey = key
			signingKeyLen = key_certificate.KEYCERT_SIGN_P256_SIZE
		case key_certificate.KEYCERT_SIGN_ED25519:
			key := make(ed25519.Ed25519PublicKey, key_certificate.KEYCERT_SIGN_ED25519_SIZE)
			copy(key, data[DataSize-key_certificate.KEYCERT_SIGN_ED25519_SIZE:DataSize])
			verifyingKey = key
			signingKeyLen = key_certificate.KEYCERT_SIGN_ED25519_SIZE
		default:
			log.WithFields(logger.Fields{
				"signing_key_kind": signingKeyKind,
			}).Warn("unsupported signing key kind for router identity")
			return nil, nil, ErrUnknownSigningKey
		}

		switch publicKeyKind {
		case key_certificate.KEYCERT_CRYPTO_ELG:
			privateKeyLen = key_certificate.KEYCERT_CRYPTO_ELG_SIZE
		case key_certificate.KEYCERT_CRYPTO_P256:
			privateKeyLen = key_certificate.KEYCERT_CRYPTO_P256_SIZE
		case key_certificate.KEYCERT_CRYPTO_X25519:
			privateKeyLen = key_certificate.KEYCERT_CRYPTO_X25519_SIZE
		default:
			log.WithFields(logger.Fields{
				"public_key_kind": publicKeyKind,
			}).Warn("unsupported public key kind for router identity")
			return nil, nil, ErrUnknownPublicKey
		}

		totalLen = KeyCertSize

	default:
		log.WithFields(logger.Fields{
			"certificate_kind":   certKind,
			"certificate_length": certLen,
		}).Warn("unsupported certificate for router identity")
		return nil, nil, ErrUnknownCertificate
	}

	serialized := make([]byte, totalLen)
	copy(serialized, data[:totalLen])
	hash := sha256.Sum256(serialized)

	return &RouterIdentity{
		id:            RouterID(base64.EncodeToString(hash[:])),
		hash:          hash,
		serialized:    serialized,
		verifyingKey:  verifyingKey,
		signingKeyLen: signingKeyLen,
		privateKeyLen: privateKeyLen,
	}, data[totalLen:], nil
}

// Parse parses a router identity, ignoring trailing bytes.
func Parse(data []byte) (*RouterIdentity, error) {
	ident, _, err := ReadRouterIdentity(data)
	return ident, err
}

// ID returns the content-addressed router identifier.
func (r *RouterIdentity) ID() RouterID {
	return r.id
}

// Hash returns the SHA-256 digest of the serialized identity.
func (r *RouterIdentity) Hash() [sha256.Size]byte {
	return r.hash
}

// Bytes returns the canonical serialization.
func (r *RouterIdentity) Bytes() []byte {
	out := make([]byte, len(r.serialized))
	copy(out, r.serialized)
	return out
}

// Len returns the serialized length.
func (r *RouterIdentity) Len() int {
	return len(r.serialized)
}

// VerifyingKey returns the signing public key declared by the certificate.
func (r *RouterIdentity) VerifyingKey() types.SigningPublicKey {
	return r.verifyingKey
}

// SigningKeyLen returns the signing key size implied by the certificate.
func (r *RouterIdentity) SigningKeyLen() int {
	return r.signingKeyLen
}

// PrivateKeyLen returns the public (encryption) key size implied by the
// certificate.
func (r *RouterIdentity) PrivateKeyLen() int {
	return r.privateKeyLen
}
