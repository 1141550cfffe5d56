package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/go-i2p/common/key_certificate"
	"github.com/go-i2p/crypto/ed25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-ssu2/lib/common/base64"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return buf
}

// keyCertIdentity serializes a key block plus a key certificate declaring
// the given key kinds.
func keyCertIdentity(t *testing.T, signingKeyKind, publicKeyKind uint16) []byte {
	t.Helper()
	data := randomBytes(t, DataSize)
	data = append(data, 0x05) // key certificate
	data = binary.BigEndian.AppendUint16(data, keyCertPayloadLen)
	data = binary.BigEndian.AppendUint16(data, signingKeyKind)
	data = binary.BigEndian.AppendUint16(data, publicKeyKind)
	return data
}

// nullCertIdentity serializes a key block plus a null certificate.
func nullCertIdentity(t *testing.T) []byte {
	t.Helper()
	return append(randomBytes(t, DataSize), 0x00, 0x00, 0x00)
}

func TestRouterIdentity_NewRoundTrips(t *testing.T) {
	verifyingKey := ed25519.Ed25519PublicKey(randomBytes(t, key_certificate.KEYCERT_SIGN_ED25519_SIZE))

	ident, err := New(verifyingKey)
	require.NoError(t, err)
	assert.Equal(t, KeyCertSize, ident.Len())
	assert.Equal(t, key_certificate.KEYCERT_SIGN_ED25519_SIZE, ident.SigningKeyLen())
	assert.Equal(t, key_certificate.KEYCERT_CRYPTO_X25519_SIZE, ident.PrivateKeyLen())
	assert.True(t, ident.ID().Known())

	parsed, err := Parse(ident.Bytes())
	require.NoError(t, err)
	assert.Equal(t, ident.ID(), parsed.ID())
	assert.Equal(t, ident.Hash(), parsed.Hash())
	assert.Equal(t, ident.Bytes(), parsed.Bytes())
	assert.Equal(t, []byte(verifyingKey), parsed.VerifyingKey().Bytes())
}

func TestRouterIdentity_NewRejectsBadKeyLength(t *testing.T) {
	_, err := New(ed25519.Ed25519PublicKey(randomBytes(t, 16)))
	assert.Error(t, err)
}

func TestRouterIdentity_NullCertificate(t *testing.T) {
	data := nullCertIdentity(t)

	ident, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, MinSize, ident.Len())
	assert.Equal(t, data, ident.Bytes())
	assert.Equal(t, key_certificate.KEYCERT_SIGN_DSA_SHA1_SIZE, ident.SigningKeyLen())
	assert.Equal(t, key_certificate.KEYCERT_CRYPTO_ELG_SIZE, ident.PrivateKeyLen())

	// The DSA verifying key occupies the tail of the key block.
	assert.Equal(t, data[DataSize-key_certificate.KEYCERT_SIGN_DSA_SHA1_SIZE:DataSize], ident.VerifyingKey().Bytes())
}

func TestRouterIdentity_IDMatchesSerializedDigest(t *testing.T) {
	data := nullCertIdentity(t)

	ident, err := Parse(data)
	require.NoError(t, err)

	digest := sha256.Sum256(data)
	assert.Equal(t, digest, ident.Hash())
	assert.Equal(t, RouterID(base64.EncodeToString(digest[:])), ident.ID())
}

func TestRouterIdentity_P256KeyCertificate(t *testing.T) {
	data := keyCertIdentity(t, key_certificate.KEYCERT_SIGN_P256, key_certificate.KEYCERT_CRYPTO_ELG)

	ident, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, KeyCertSize, ident.Len())
	assert.Equal(t, key_certificate.KEYCERT_SIGN_P256_SIZE, ident.SigningKeyLen())
	assert.Equal(t, key_certificate.KEYCERT_CRYPTO_ELG_SIZE, ident.PrivateKeyLen())
	assert.Equal(t, data[DataSize-key_certificate.KEYCERT_SIGN_P256_SIZE:DataSize], ident.VerifyingKey().Bytes())
}

func TestRouterIdentity_ReadReturnsRemainder(t *testing.T) {
	trailer := []byte{0xde, 0xad, 0xbe, 0xef}
	data := append(nullCertIdentity(t), trailer...)

	ident, remainder, err := ReadRouterIdentity(data)
	require.NoError(t, err)
	assert.Equal(t, MinSize, ident.Len())
	assert.Equal(t, trailer, remainder)
}

func TestRouterIdentity_TooShort(t *testing.T) {
	_, _, err := ReadRouterIdentity(randomBytes(t, MinSize-1))
	assert.ErrorIs(t, err, ErrTooShort)

	// A key certificate needs its 4-byte payload.
	truncated := keyCertIdentity(t, key_certificate.KEYCERT_SIGN_ED25519, key_certificate.KEYCERT_CRYPTO_X25519)[:KeyCertSize-2]
	_, _, err = ReadRouterIdentity(truncated)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestRouterIdentity_UnknownCertificateKind(t *testing.T) {
	data := nullCertIdentity(t)
	data[DataSize] = 0x01 // hashcash certificate

	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrUnknownCertificate)
}

func TestRouterIdentity_DSAInKeyCertificateRejected(t *testing.T) {
	data := keyCertIdentity(t, key_certificate.KEYCERT_SIGN_DSA_SHA1, key_certificate.KEYCERT_CRYPTO_ELG)

	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrUnknownSigningKey)
}

func TestRouterIdentity_UnknownSigningKeyKind(t *testing.T) {
	data := keyCertIdentity(t, 0x7fff, key_certificate.KEYCERT_CRYPTO_X25519)

	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrUnknownSigningKey)
}

func TestRouterIdentity_UnknownPublicKeyKind(t *testing.T) {
	data := keyCertIdentity(t, key_certificate.KEYCERT_SIGN_ED25519, 0x7fff)

	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrUnknownPublicKey)
}

func TestRouterID_String(t *testing.T) {
	assert.Equal(t, "", RouterID("").String())
	assert.False(t, RouterID("").Known())

	id := RouterID("fSLc1FeHCwisNUTNBNEZkL8G5vZL1DELXPezvxFky-o=")
	assert.Equal(t, "fSLc1FeH", id.String())
	assert.True(t, id.Known())
}
