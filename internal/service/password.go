package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordAlgorithm = "pbkdf2_sha256"
	// DefaultPasswordIterations matches the work factor of existing hashes.
	DefaultPasswordIterations = 870000
	saltChars                 = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	saltLength                = 22
)

var errMalformedHash = errors.New("malformed password hash")

// PasswordHasher produces and checks "pbkdf2_sha256$<iterations>$<salt>$<hash>"
// strings. Hashes with a different iteration count still verify.
type PasswordHasher struct {
	Iterations int
	dummy      string
}

// NewPasswordHasher returns a hasher using iterations for new hashes.
func NewPasswordHasher(iterations int) (*PasswordHasher, error) {
	if iterations <= 0 {
		iterations = DefaultPasswordIterations
	}
	h := &PasswordHasher{Iterations: iterations}
	dummy, err := h.Hash("plume-dummy-password")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash derives a new salted hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt, err := randomSalt()
	if err != nil {
		return "", err
	}
	return encodeHash(password, salt, h.Iterations), nil
}

// Check reports whether password matches encoded. Malformed hashes never match.
func (h *PasswordHasher) Check(password, encoded string) bool {
	iterations, salt, want, err := decodeHash(encoded)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// DummyCheck spends the same time as a real Check. It is used when the
// account does not exist so response time does not reveal that.
func (h *PasswordHasher) DummyCheck(password string) {
	_ = h.Check(password, h.dummy)
}

func encodeHash(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s", passwordAlgorithm, iterations, salt,
		base64.StdEncoding.EncodeToString(key))
}

func decodeHash(encoded string) (int, string, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != passwordAlgorithm {
		return 0, "", nil, errMalformedHash
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, "", nil, errMalformedHash
	}
	want, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return 0, "", nil, errMalformedHash
	}
	return iterations, parts[2], want, nil
}

func randomSalt() (string, error) {
	max := big.NewInt(int64(len(saltChars)))
	b := make([]byte, saltLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = saltChars[n.Int64()]
	}
	return string(b), nil
}
