// Package session issues, renews and invalidates login sessions.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/models"
)

const (
	DefaultLifetime    = 30 * 24 * time.Hour
	DefaultRenewWithin = 15 * 24 * time.Hour
	idBytes            = 25
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

var errRenewalLost = errors.New("session renewed concurrently")

type Config struct {
	Lifetime    time.Duration
	RenewWithin time.Duration
}

type Manager struct {
	store  contracts.Store
	codec  TokenCodec
	config Config
	now    func() time.Time
}

func NewManager(store contracts.Store, codec TokenCodec, cfg Config) *Manager {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.RenewWithin <= 0 || cfg.RenewWithin >= cfg.Lifetime {
		cfg.RenewWithin = cfg.Lifetime / 2
	}
	return &Manager{store: store, codec: codec, config: cfg, now: time.Now}
}

// Validate resolves a client token to its live session and user. Anything
// that does not resolve cleanly yields a nil session. A store failure is
// returned for logging, the session is still nil.
//
// When less than RenewWithin of the lifetime remains, the session is rotated
// onto a new id with a full lifetime and returned with Fresh set. The old
// token stops resolving.
func (m *Manager) Validate(ctx context.Context, value string) (*models.Session, *models.User, error) {
	if value == "" {
		return nil, nil, nil
	}
	id, err := m.codec.Open(value)
	if err != nil {
		return nil, nil, nil
	}
	current, err := m.store.GetSession(ctx, id)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	now := m.now()
	if current.Expired(now) {
		if err := m.InvalidateSession(ctx, current.ID); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	user, err := m.store.GetUserByID(ctx, current.UserID)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load session user: %w", err)
	}
	if current.ExpiresAt.Sub(now) >= m.config.RenewWithin {
		return current, user, nil
	}

	renewed := &models.Session{
		UserID:             current.UserID,
		SecondFactorPassed: current.SecondFactorPassed,
		ExpiresAt:          now.Add(m.config.Lifetime),
	}
	if renewed.ID, err = NewID(); err != nil {
		return nil, nil, err
	}
	err = m.store.Atomic(ctx, func(tx contracts.Tx) error {
		deleted, err := tx.DeleteSession(ctx, current.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return errRenewalLost
		}
		return tx.InsertSession(ctx, renewed)
	})
	if errors.Is(err, errRenewalLost) {
		// Another request rotated it first and carries the new token.
		return current, user, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("renew session: %w", err)
	}
	renewed.Fresh = true
	return renewed, user, nil
}

// CreateSession starts a new session for userID.
func (m *Manager) CreateSession(ctx context.Context, userID string, secondFactorPassed bool) (*models.Session, error) {
	var created *models.Session
	err := m.store.Atomic(ctx, func(tx contracts.Tx) error {
		var err error
		created, err = m.Insert(ctx, tx, userID, secondFactorPassed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Insert creates a session inside a unit of work the caller already owns.
func (m *Manager) Insert(ctx context.Context, tx contracts.Tx, userID string, secondFactorPassed bool) (*models.Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	created := &models.Session{
		ID:                 id,
		UserID:             userID,
		SecondFactorPassed: secondFactorPassed,
		ExpiresAt:          m.now().Add(m.config.Lifetime),
	}
	if err := tx.InsertSession(ctx, created); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

// ReplaceSessionKeepingID swaps prior for a session with the same id, user
// and expiry but a new factor flag. The client token stays valid.
func (m *Manager) ReplaceSessionKeepingID(ctx context.Context, prior *models.Session, secondFactorPassed bool) (*models.Session, error) {
	var replaced *models.Session
	err := m.store.Atomic(ctx, func(tx contracts.Tx) error {
		var err error
		replaced, err = m.Replace(ctx, tx, prior, secondFactorPassed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// Replace is ReplaceSessionKeepingID inside a unit of work the caller owns.
func (m *Manager) Replace(ctx context.Context, tx contracts.Tx, prior *models.Session, secondFactorPassed bool) (*models.Session, error) {
	deleted, err := tx.DeleteSession(ctx, prior.ID)
	if err != nil {
		return nil, fmt.Errorf("invalidate session: %w", err)
	}
	if !deleted {
		return nil, fmt.Errorf("invalidate session %s: %w", prior.ID, contracts.ErrNotFound)
	}
	replaced := &models.Session{
		ID:                 prior.ID,
		UserID:             prior.UserID,
		SecondFactorPassed: secondFactorPassed,
		ExpiresAt:          prior.ExpiresAt,
	}
	if err := tx.InsertSession(ctx, replaced); err != nil {
		return nil, fmt.Errorf("recreate session: %w", err)
	}
	return replaced, nil
}

// InvalidateSession removes the session. Missing sessions are not an error.
func (m *Manager) InvalidateSession(ctx context.Context, id string) error {
	return m.store.Atomic(ctx, func(tx contracts.Tx) error {
		_, err := tx.DeleteSession(ctx, id)
		return err
	})
}

// Token seals the session id for the client.
func (m *Manager) Token(s *models.Session) (string, error) {
	return m.codec.Seal(s.ID, m.config.Lifetime)
}

// BlankToken is the value written when the client must forget its session.
func (m *Manager) BlankToken() string {
	return ""
}

func (m *Manager) Lifetime() time.Duration {
	return m.config.Lifetime
}

// NewID returns 200 bits of randomness as lower case base32.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return strings.ToLower(idEncoding.EncodeToString(b)), nil
}
