package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for newly created digests.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

// legacyDigestLen is the length of a hex SHA-256 digest written by the
// previous peppered scheme.
const legacyDigestLen = 64

var errBadDigest = errors.New("unrecognized password digest")

// PasswordHasher derives and checks password digests.  New digests are
// Argon2id PHC strings; peppered SHA-256 digests from older rows are still
// accepted by Verify and reported by NeedsRehash.
type PasswordHasher struct {
	pepper string
}

// NewPasswordHasher returns a hasher.  pepper is only used to check legacy
// digests.
func NewPasswordHasher(pepper string) *PasswordHasher {
	return &PasswordHasher{pepper: pepper}
}

// Hash returns a salted Argon2id digest of password in PHC format:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches digest.  Comparisons are
// constant-time; an unparseable digest never matches.
func (h *PasswordHasher) Verify(password, digest string) bool {
	if isLegacyDigest(digest) {
		want := h.legacyDigest(password)
		return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(digest))) == 1
	}
	p, err := decodePHC(digest)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key))) //nolint:gosec // key length is small
	return subtle.ConstantTimeCompare(p.key, candidate) == 1
}

// NeedsRehash reports whether digest should be replaced with a fresh Hash
// after a successful Verify.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	if isLegacyDigest(digest) {
		return true
	}
	p, err := decodePHC(digest)
	if err != nil {
		return true
	}
	return p.time != argonTime || p.memory != argonMemory || p.threads != argonThreads || len(p.key) != argonKeyLen
}

func (h *PasswordHasher) legacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password + h.pepper))
	return hex.EncodeToString(sum[:])
}

func isLegacyDigest(d string) bool {
	if len(d) != legacyDigestLen {
		return false
	}
	_, err := hex.DecodeString(d)
	return err == nil
}

type phcParams struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

func decodePHC(encoded string) (phcParams, error) {
	var p phcParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, errBadDigest
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, errBadDigest
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, errBadDigest
	}
	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, errBadDigest
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return p, errBadDigest
	}
	return p, nil
}
