package password

import (
	"errors"
	"strings"
)

// DefaultMaxPasswordBytes bounds the input accepted by Hash and Verify.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordTooLong is returned for inputs above the hasher's byte limit.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrEmptyPassword is returned by Hash for empty input.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrUnknownFormat is returned for stored hashes no hasher recognises.
	ErrUnknownFormat = errors.New("unrecognised password hash format")
)

// Hasher hashes passwords and checks candidates against stored hashes.
// Verify returns (false, nil) for a wrong password and an error only when
// the stored hash cannot be interpreted.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Set routes Verify and NeedsUpgrade to the hasher matching the stored format
// and hashes new passwords with Primary.
type Set struct {
	Primary Hasher
	Bcrypt  *Bcrypt
	Argon2  *Argon2
}

func (s Set) Hash(password string) (string, error) {
	return s.Primary.Hash(password)
}

func (s Set) Verify(password, encodedHash string) (bool, error) {
	h, err := s.forHash(encodedHash)
	if err != nil {
		return false, err
	}
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade also reports true when the stored hash uses a different
// algorithm than Primary.
func (s Set) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := s.forHash(encodedHash)
	if err != nil {
		return false, err
	}
	if h != s.Primary {
		return true, nil
	}
	return h.NeedsUpgrade(encodedHash)
}

func (s Set) forHash(encodedHash string) (Hasher, error) {
	switch ForHash(encodedHash) {
	case "bcrypt":
		if s.Bcrypt != nil {
			return s.Bcrypt, nil
		}
	case "argon2id":
		if s.Argon2 != nil {
			return s.Argon2, nil
		}
	}
	return nil, ErrUnknownFormat
}

// ForHash names the algorithm that produced encodedHash, or "" if unknown.
func ForHash(encodedHash string) string {
	switch {
	case strings.HasPrefix(encodedHash, "$2a$"), strings.HasPrefix(encodedHash, "$2b$"), strings.HasPrefix(encodedHash, "$2y$"):
		return "bcrypt"
	case strings.HasPrefix(encodedHash, "$"+argon2ID+"$"):
		return argon2ID
	default:
		return ""
	}
}

func checkLength(password string, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxPasswordBytes
	}
	if len(password) > limit {
		return ErrPasswordTooLong
	}
	return nil
}
