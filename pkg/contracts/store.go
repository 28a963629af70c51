package contracts

import (
	"context"
	"errors"

	"github.com/oarkflow/whitebox/pkg/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Store is the credential store. Reads run outside of any unit of work;
// every write goes through Atomic so callers decide what must commit together.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the write side of the store. Writes that return ErrConflict leave
// the unit of work unusable and Atomic rolls it back.
type Tx interface {
	InsertUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) error
	InsertProfile(ctx context.Context, profile *models.Profile) error
	UpdateProfile(ctx context.Context, profile *models.Profile) error
	InsertSession(ctx context.Context, session *models.Session) error
	// DeleteSession reports whether a row was removed.
	DeleteSession(ctx context.Context, id string) (bool, error)
}

// PasswordScorer rates a candidate password from 0 (weak) to 4 (strong).
type PasswordScorer interface {
	Score(password string, userInputs []string) int
}
