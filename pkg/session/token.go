package session

import (
	"errors"
	"time"

	"github.com/oarkflow/paseto/token"
)

var ErrInvalidToken = errors.New("invalid session token")

// TokenCodec seals a session id into the opaque value handed to the client.
type TokenCodec interface {
	Seal(sessionID string, lifetime time.Duration) (string, error)
	Open(value string) (string, error)
}

// PasetoCodec encrypts the session id with a symmetric PASETO key.
type PasetoCodec struct {
	secret []byte
}

func NewPasetoCodec(secret []byte) (*PasetoCodec, error) {
	if len(secret) != 32 {
		return nil, errors.New("session secret must be exactly 32 bytes")
	}
	return &PasetoCodec{secret: secret}, nil
}

func (p *PasetoCodec) Seal(sessionID string, lifetime time.Duration) (string, error) {
	t := token.CreateToken(lifetime, token.AlgEncrypt)
	if err := token.RegisterClaims(t, map[string]any{"sid": sessionID}); err != nil {
		return "", err
	}
	return token.EncryptToken(t, p.secret)
}

func (p *PasetoCodec) Open(value string) (string, error) {
	decTok, err := token.DecryptToken(value, p.secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	sid, _ := decTok.Claims["sid"].(string)
	if sid == "" {
		return "", ErrInvalidToken
	}
	return sid, nil
}
