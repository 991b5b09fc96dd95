package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2ID = "argon2id"

	minArgonMemoryKB uint32 = 8 * 1024
	minArgonSaltLen  uint32 = 16
	minArgonKeyLen   uint32 = 16
)

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultArgon2Config returns the parameters used when argon2id is selected
// without explicit tuning.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes with argon2id and encodes results as PHC strings.
type Argon2 struct {
	cfg Argon2Config
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns an Argon2 hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minArgonMemoryKB:
		return nil, fmt.Errorf("argon2 memory must be >= %d KB", minArgonMemoryKB)
	case cfg.Time < 1:
		return nil, errors.New("argon2 time must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case cfg.SaltLength < minArgonSaltLen:
		return nil, fmt.Errorf("argon2 salt length must be >= %d", minArgonSaltLen)
	case cfg.KeyLength < minArgonKeyLen:
		return nil, fmt.Errorf("argon2 key length must be >= %d", minArgonKeyLen)
	case cfg.MaxPasswordBytes < 0:
		return nil, errors.New("argon2 max password bytes must not be negative")
	}
	return &Argon2{cfg: cfg}, nil
}

func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if err := checkLength(password, a.cfg.MaxPasswordBytes); err != nil {
		return "", err
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID, argon2.Version,
		a.cfg.Memory, a.cfg.Time, a.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if err := checkLength(password, a.cfg.MaxPasswordBytes); err != nil {
		return false, nil
	}
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.parallelism < a.cfg.Parallelism ||
		uint32(len(p.key)) != a.cfg.KeyLength, nil
}

func decodePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2ID {
		return phc{}, ErrUnknownFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return phc{}, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return phc{}, errors.New("unsupported argon2 version")
	}

	var p phc
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil {
		return phc{}, errors.New("invalid argon2 parameters")
	}
	if p.memory < minArgonMemoryKB || p.time < 1 || p.parallelism < 1 {
		return phc{}, errors.New("invalid argon2 parameters")
	}

	var err error
	if p.salt, err = decodeB64(parts[4]); err != nil || len(p.salt) < int(minArgonSaltLen) {
		return phc{}, errors.New("invalid argon2 salt")
	}
	if p.key, err = decodeB64(parts[5]); err != nil || len(p.key) == 0 {
		return phc{}, errors.New("invalid argon2 hash")
	}
	return p, nil
}

// decodeB64 accepts both padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
