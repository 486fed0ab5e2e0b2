package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new hashes.
const DefaultCost = 12

// ErrHashing is returned when the hashing primitive fails. No partial hash is
// ever returned alongside it.
var ErrHashing = errors.New("error processing password")

// PasswordHash is the parsed form of a stored password hash. The concrete
// type decides how a candidate password is verified.
type PasswordHash interface {
	// Matches reports whether password produces this hash.
	Matches(password string) bool
	isPasswordHash()
}

// AdaptiveHash is a bcrypt hash in modular crypt format. Cost and salt are
// embedded in Encoded.
type AdaptiveHash struct {
	Encoded string
}

// LegacyDigest is a hex SHA-256 digest over Salt+password, produced by the
// scheme that predates bcrypt. New records never use it.
type LegacyDigest struct {
	Digest string
	Salt   string
}

func (AdaptiveHash) isPasswordHash() {}
func (LegacyDigest) isPasswordHash() {}

// Matches compares in constant time via bcrypt.
func (h AdaptiveHash) Matches(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(h.Encoded), []byte(password)) == nil
}

// Matches recomputes the digest and compares it in constant time.
func (h LegacyDigest) Matches(password string) bool {
	if h.Digest == "" {
		return false
	}
	computed := LegacySHA256(h.Salt, password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(h.Digest)) == 1
}

// adaptivePrefixes are the bcrypt identifiers recognised as adaptive hashes.
var adaptivePrefixes = []string{"$2a$", "$2b$", "$2y$"}

// ParsePasswordHash classifies a stored hash. Anything that does not carry a
// bcrypt identifier is treated as a legacy digest salted with legacySalt.
func ParsePasswordHash(stored, legacySalt string) PasswordHash {
	for _, prefix := range adaptivePrefixes {
		if strings.HasPrefix(stored, prefix) {
			return AdaptiveHash{Encoded: stored}
		}
	}
	return LegacyDigest{Digest: stored, Salt: legacySalt}
}

// LegacySHA256 returns the lowercase hex SHA-256 of salt followed by password.
// It exists for verifying and importing pre-bcrypt records.
func LegacySHA256(salt, password string) string {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

// Hasher produces adaptive hashes at a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher for the given bcrypt cost. Costs outside bcrypt's
// accepted range fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the configured bcrypt cost.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a bcrypt hash of password with a freshly generated salt.
func (h *Hasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(out), nil
}
