// Package crypto provides password hashing for stored user accounts.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// N=16384 (2^14), r=8, p=1 are the recommended interactive-login parameters.
const (
	scryptN       = 16384
	scryptR       = 8
	scryptP       = 1
	scryptKeyLen  = 32
	saltLen       = 16
	hashAlgorithm = "scrypt"
)

// ErrMalformedHash is returned when a stored hash is not in scrypt$salt$key form.
var ErrMalformedHash = errors.New("malformed password hash")

// HashWithScrypt derives a hex-encoded scrypt key from input and salt.
func HashWithScrypt(input string, salt []byte) (string, error) {
	dk, err := scrypt.Key([]byte(input), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt key derivation failed: %w", err)
	}
	return hex.EncodeToString(dk), nil
}

// HashPassword hashes a password under a fresh random salt.
// The result is encoded as "scrypt$<salt-hex>$<key-hex>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key, err := HashWithScrypt(password, salt)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{hashAlgorithm, hex.EncodeToString(salt), key}, "$"), nil
}

// VerifyPassword reports whether password matches an encoded hash produced by HashPassword.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != hashAlgorithm {
		return false, ErrMalformedHash
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false, ErrMalformedHash
	}

	key, err := HashWithScrypt(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(parts[2])) == 1, nil
}

// EqualSecret compares two secrets in constant time.
func EqualSecret(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
