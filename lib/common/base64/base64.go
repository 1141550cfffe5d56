// Package base64 provides encoding helpers using I2P's base64 alphabet.
package base64

import (
	b64 "encoding/base64"
)

// I2PEncodeAlphabet is RFC 4648 with "/" replaced by "~" and "+" by "-",
// as used throughout I2P for hashes and identifiers.
const I2PEncodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-~"

// I2PEncoding is the base64 encoding over I2PEncodeAlphabet.
var I2PEncoding = b64.NewEncoding(I2PEncodeAlphabet)

// EncodeToString encodes data with the I2P alphabet.
func EncodeToString(data []byte) string {
	return I2PEncoding.EncodeToString(data)
}

// DecodeString decodes an I2P-alphabet base64 string.
func DecodeString(str string) ([]byte, error) {
	return I2PEncoding.DecodeString(str)
}
