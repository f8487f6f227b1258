package tenant

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// Hash type labels returned by DetectHashType.
const (
	HashTypeArgon2id = "argon2id"
	HashTypeSHA256   = "sha256"
	HashTypeUnknown  = "unknown"
)

const sha256Prefix = "sha256:"

// HashKey returns the "sha256:<hex>" form of the raw key. This is the form
// gateways are indexed by for the fast lookup path.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return sha256Prefix + hex.EncodeToString(sum[:])
}

// argon2idParams are the OWASP minimum parameters (46 MiB, t=1, p=1).
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashKeyArgon2id returns a salted Argon2id hash of the raw key in PHC format.
func HashKeyArgon2id(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// DetectHashType identifies the algorithm of a stored hash: "argon2id" for
// PHC strings, "sha256" for prefixed or bare 64-char hex, "unknown" otherwise.
func DetectHashType(storedHash string) string {
	switch {
	case strings.HasPrefix(storedHash, "$argon2id$"):
		return HashTypeArgon2id
	case strings.HasPrefix(storedHash, sha256Prefix):
		return HashTypeSHA256
	case len(storedHash) == 64 && isHex(storedHash):
		return HashTypeSHA256
	default:
		return HashTypeUnknown
	}
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

// VerifyKey checks a raw key against a stored hash in constant time.
// Returns ErrUnknownHashType for unrecognized hash formats.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	switch DetectHashType(storedHash) {
	case HashTypeArgon2id:
		return compareArgon2id(rawKey, storedHash)
	case HashTypeSHA256:
		want := strings.ToLower(strings.TrimPrefix(storedHash, sha256Prefix))
		got := strings.TrimPrefix(HashKey(rawKey), sha256Prefix)
		return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
	default:
		return false, ErrUnknownHashType
	}
}

// compareArgon2id recovers from panics the argon2 package raises on
// malformed parameters (t=0, p=0) so VerifyKey never panics.
func compareArgon2id(rawKey, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}
