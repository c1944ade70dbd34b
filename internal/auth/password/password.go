// Package password hashes merchant staff passwords with PBKDF2-SHA256.
//
// Encoded form: pbkdf2_sha256$<iterations>$<salt>$<key>, salt and key in unpadded base64url.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	algorithm  = "pbkdf2_sha256"
	Iterations = 210000
	saltLen    = 16
	keyLen     = 32
)

// ErrMalformedHash is returned when a stored hash cannot be parsed
var ErrMalformedHash = errors.New("malformed password hash")

var b64 = base64.RawURLEncoding

// Hash derives a new salted hash of password
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return encode(password, salt, Iterations), nil
}

// Verify reports whether password matches the encoded hash
func Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != algorithm {
		return false, ErrMalformedHash
	}

	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter < 1 {
		return false, ErrMalformedHash
	}
	salt, err := b64.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return false, ErrMalformedHash
	}
	want, err := b64.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}

	got := pbkdf2.Key([]byte(password), salt, iter, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func encode(password string, salt []byte, iter int) string {
	key := pbkdf2.Key([]byte(password), salt, iter, keyLen, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s", algorithm, iter, b64.EncodeToString(salt), b64.EncodeToString(key))
}
