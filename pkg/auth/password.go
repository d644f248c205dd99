package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2 parameters. These mirror the Rust original's use of Argon2's
// library defaults (time=1, memory=19MiB scaled up here to 64MiB, 4 lanes).
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// hashPassword salts and hashes a (pepper-appended) password, encoding the
// result as a self-describing string so verifyPassword never needs external
// parameter storage.
func hashPassword(password, pepper string) (string, error) {
	peppered := password + pepper

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}

	hash := argon2.IDKey([]byte(peppered), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// HashSecret hashes an arbitrary secret (e.g. a table join passphrase) with
// the same Argon2id scheme used for account passwords, unpeppered.
func HashSecret(secret string) (string, error) {
	return hashPassword(secret, "")
}

// VerifySecret checks a secret against a hash produced by HashSecret. It
// returns (false, nil) on mismatch rather than an error, since a wrong
// passphrase is an expected outcome, not a failure.
func VerifySecret(secret, encoded string) (bool, error) {
	err := verifyPassword(secret, "", encoded)
	if err == nil {
		return true, nil
	}
	if err == ErrInvalidPassword {
		return false, nil
	}
	return false, err
}

// verifyPassword checks a (pepper-appended) password against an encoded hash
// produced by hashPassword.
func verifyPassword(password, pepper, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return ErrInvalidPassword
	}

	var memory uint32
	var time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return ErrInvalidPassword
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrInvalidPassword
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ErrInvalidPassword
	}

	got := argon2.IDKey([]byte(password+pepper), salt, time, memory, threads, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrInvalidPassword
	}
	return nil
}
