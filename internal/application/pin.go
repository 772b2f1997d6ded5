package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrMalformedPINHash is returned when a stored hash is not in the encoded argon2id form.
	ErrMalformedPINHash = errors.New("application: malformed pin hash")
	// ErrPINMismatch is returned when a PIN does not match the stored hash.
	ErrPINMismatch = errors.New("application: pin mismatch")
)

// PINHashParams are the argon2id cost settings.
type PINHashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPINHashParams are used by HashPIN.
var DefaultPINHashParams = PINHashParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// PINHasher turns a PIN into its stored form.
type PINHasher func(pin string) (string, error)

// PINVerifier checks a PIN against its stored form.
type PINVerifier func(encoded, pin string) error

// HashPIN hashes pin with DefaultPINHashParams.
func HashPIN(pin string) (string, error) {
	return HashPINWithParams(pin, DefaultPINHashParams)
}

// HashPINWithParams returns $argon2id$v=<version>$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<key>.
func HashPINWithParams(pin string, params PINHashParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("application: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(pin), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPIN recomputes the argon2id key for pin with the parameters stored
// in encoded and compares it in constant time.
func VerifyPIN(encoded, pin string) error {
	params, salt, key, err := decodePINHash(encoded)
	if err != nil {
		return err
	}

	candidate := argon2.IDKey([]byte(pin), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return ErrPINMismatch
	}
	return nil
}

func decodePINHash(encoded string) (PINHashParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return PINHashParams{}, nil, nil, ErrMalformedPINHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return PINHashParams{}, nil, nil, fmt.Errorf("%w: %v", ErrMalformedPINHash, err)
	}
	if version != argon2.Version {
		return PINHashParams{}, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedPINHash, version)
	}

	var params PINHashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return PINHashParams{}, nil, nil, fmt.Errorf("%w: %v", ErrMalformedPINHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return PINHashParams{}, nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedPINHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return PINHashParams{}, nil, nil, fmt.Errorf("%w: key: %v", ErrMalformedPINHash, err)
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}
