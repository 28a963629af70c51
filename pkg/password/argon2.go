// Package password hashes and verifies account passwords with argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	MinMemoryKB    uint32 = 19456
	MinTimeCost    uint32 = 2
	MinParallelism uint8  = 1
	MinSaltLength  uint32 = 16
	MinKeyLength   uint32 = 32
	algorithmID           = "argon2id"
)

var ErrInvalidHash = errors.New("invalid password hash")

type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig is the cheapest configuration the hasher accepts.
func DefaultConfig() Config {
	return Config{
		Memory:      MinMemoryKB,
		Time:        MinTimeCost,
		Parallelism: MinParallelism,
		SaltLength:  MinSaltLength,
		KeyLength:   MinKeyLength,
	}
}

type Argon2 struct {
	config Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC encoded argon2id hash of password.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify compares password against encodedHash in constant time.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}
	parsed := &parsedPHC{}
	for _, pair := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, pair)
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, pair)
		}
		switch k {
		case "m":
			parsed.memory = uint32(n)
		case "t":
			parsed.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, pair)
			}
			parsed.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidHash, k)
		}
	}
	if parsed.memory == 0 || parsed.time == 0 || parsed.parallelism == 0 {
		return nil, fmt.Errorf("%w: missing parameters", ErrInvalidHash)
	}
	var err error
	if parsed.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(parsed.salt) == 0 {
		return nil, fmt.Errorf("%w: bad salt", ErrInvalidHash)
	}
	if parsed.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(parsed.hash) == 0 {
		return nil, fmt.Errorf("%w: bad digest", ErrInvalidHash)
	}
	return parsed, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < MinMemoryKB {
		return fmt.Errorf("password memory must be >= %d KiB", MinMemoryKB)
	}
	if cfg.Time < MinTimeCost {
		return fmt.Errorf("password time must be >= %d", MinTimeCost)
	}
	if cfg.Parallelism < MinParallelism {
		return fmt.Errorf("password parallelism must be >= %d", MinParallelism)
	}
	if cfg.SaltLength < MinSaltLength {
		return fmt.Errorf("password salt length must be >= %d", MinSaltLength)
	}
	if cfg.KeyLength < MinKeyLength {
		return fmt.Errorf("password key length must be >= %d", MinKeyLength)
	}
	return nil
}
