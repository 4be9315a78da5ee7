package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const tokenBytes = 32

// GenerateToken returns 32 bytes of cryptographic randomness as hex.
// Used for OAuth state nonces.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// RandomString returns n bytes of randomness as a 2n-character hex string.
func RandomString(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func HmacSHA256(secret, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SignValue appends an HMAC-SHA256 signature to a value:
// "<value>.<hex signature>". The value may itself contain dots; the
// signature always follows the last one.
func SignValue(secret, value string) string {
	return value + "." + HmacSHA256(secret, value)
}

// VerifySignedValue checks a value produced by SignValue and returns the
// original value. It returns ("", false) when the delimiter is missing or
// the signature does not match; it never returns a partially trusted value.
func VerifySignedValue(secret, signed string) (string, bool) {
	idx := strings.LastIndex(signed, ".")
	if idx < 0 {
		return "", false
	}
	value := signed[:idx]
	if !ConstantTimeEqual(signed, SignValue(secret, value)) {
		return "", false
	}
	return value, true
}
