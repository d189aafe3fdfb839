package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const refreshSecretSize = 32

// RefreshSecret is the raw high-entropy refresh credential. It exists in
// memory only; stores and blacklists see its SHA-256 hash exclusively.
type RefreshSecret [refreshSecretSize]byte

func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRefreshSecret(secret RefreshSecret) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken renders the secret as the opaque wire token. The token
// carries no embedded structure; its meaning exists only inside the store.
func EncodeRefreshToken(secret RefreshSecret) string {
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

func DecodeRefreshToken(token string) (RefreshSecret, error) {
	var secret RefreshSecret

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != refreshSecretSize {
		return secret, errors.New("invalid refresh token size")
	}

	copy(secret[:], raw)
	return secret, nil
}

// NewFamilyID mints the identifier for a rotation lineage. One family is
// created per login and shared by every rotation descending from it.
func NewFamilyID() string {
	return uuid.NewString()
}

// HashEqual compares two token hashes in constant time.
func HashEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
