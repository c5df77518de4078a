// Package password derives and verifies salted Argon2id password digests.
//
// The digest is stored raw next to its salt (no encoded "$argon2id$" string),
// so the cost parameters live in configuration, not in the stored value.
package password

import (
	"crypto/subtle"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/argon2"
)

// Hasher hashes and verifies passwords with fixed Argon2id parameters.
// It is safe for concurrent use and holds no locks while hashing.
type Hasher struct {
	params Params
}

// NewHasher validates params and returns a Hasher.
func NewHasher(params Params) (*Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &Hasher{params: params}, nil
}

// NewSalt returns common.SaltSize bytes from crypto/rand.
func (h *Hasher) NewSalt() ([]byte, error) {
	salt, err := common.GenerateRandByteArray(common.SaltSize)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", common.ErrorInternal, err)
	}
	return salt, nil
}

// Hash derives the raw digest of password under salt. The result is
// deterministic for a given (password, salt) pair.
func (h *Hasher) Hash(password string, salt []byte) ([]byte, error) {
	if len(salt) != common.SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", common.ErrorInternal, common.SaltSize, len(salt))
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.MemoryKiB,
		h.params.Parallelism,
		h.params.KeyLength,
	)
	return key, nil
}

// Verify recomputes the digest and compares it in constant time.
// A mismatch is (false, nil); an error means hashing itself failed.
func (h *Hasher) Verify(password string, salt, expected []byte) (bool, error) {
	key, err := h.Hash(password, salt)
	if err != nil {
		return false, err
	}
	defer common.WipeByteArray(key)

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}
