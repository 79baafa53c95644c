package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Salt and parameters are embedded in the encoded hash string, so the table
// stores a single opaque value per user. Supported encodings are PHC argon2id
// and argon2i, and the bcrypt $2a/$2b/$2y family.

// dummyHash is verified against for unknown usernames so that a missing user
// costs the same as a wrong password.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$c29tZXNhbHRzb21lc2FsdA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type argon2Params struct {
	variant string
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

// CheckHash reports whether the encoded hash can be verified against at all.
// Called once per user at startup; malformed hashes never reach request time.
func CheckHash(encoded string) error {
	if strings.HasPrefix(encoded, "$argon2id$") || strings.HasPrefix(encoded, "$argon2i$") {
		_, err := parseArgon2(encoded)
		return err
	}
	if strings.HasPrefix(encoded, "$2") {
		_, err := bcrypt.Cost([]byte(encoded))
		return err
	}
	return fmt.Errorf("unsupported hash encoding")
}

// VerifyHash checks the cleartext password against the encoded hash.
func VerifyHash(encoded, password string) bool {
	if strings.HasPrefix(encoded, "$argon2id$") || strings.HasPrefix(encoded, "$argon2i$") {
		return verifyArgon2(encoded, password)
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}

// HashPassword produces an argon2id PHC string for the given password, for
// operators generating config entries and for tests.
func HashPassword(password string) string {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)

	const (
		memory  = 19 * 1024
		time    = 2
		threads = 1
		keyLen  = 32
	)
	key := argon2.IDKey([]byte(password), salt, time, memory, threads, keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, time, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func verifyArgon2(encoded, password string) bool {
	p, err := parseArgon2(encoded)
	if err != nil {
		return false
	}

	var key []byte
	switch p.variant {
	case "argon2id":
		key = argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	case "argon2i":
		key = argon2.Key([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	default:
		return false
	}

	return subtle.ConstantTimeCompare(key, p.hash) == 1
}

// parseArgon2 decodes a PHC string of the form
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>.
func parseArgon2(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, fmt.Errorf("malformed argon2 hash: expected 6 fields, got %d", len(parts))
	}

	p := &argon2Params{variant: parts[1]}
	if p.variant != "argon2id" && p.variant != "argon2i" {
		return nil, fmt.Errorf("unsupported argon2 variant %q", p.variant)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("malformed argon2 version field %q", parts[2])
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil {
		return nil, fmt.Errorf("malformed argon2 parameter field %q", parts[3])
	}
	if threads == 0 || threads > 255 {
		return nil, fmt.Errorf("argon2 parallelism %d out of range", threads)
	}
	p.threads = uint8(threads)
	if p.time == 0 {
		return nil, fmt.Errorf("argon2 time cost must be positive")
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("malformed argon2 salt: %w", err)
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("malformed argon2 digest: %w", err)
	}
	if len(p.hash) == 0 {
		return nil, fmt.Errorf("empty argon2 digest")
	}

	return p, nil
}
