package storage

import (
	"context"
	"maps"
	"sync"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/models"
)

// MemoryStorage keeps every record in process memory. Atomic stages writes
// on a copy of the tables and swaps them in only when the unit succeeds.
type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[string]models.User
	byName   map[string]string
	sessions map[string]models.Session
	profiles map[string]models.Profile
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[string]models.User),
		byName:   make(map[string]string),
		sessions: make(map[string]models.Session),
		profiles: make(map[string]models.Profile),
	}
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[username]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return copyUser(m.users[id]), nil
}

func (m *MemoryStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return copyUser(user), nil
}

func (m *MemoryStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return &session, nil
}

func (m *MemoryStorage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return &profile, nil
}

// SessionCount is used by tests to assert nothing leaked.
func (m *MemoryStorage) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ProfileCount is used by tests to assert nothing was orphaned.
func (m *MemoryStorage) ProfileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

func (m *MemoryStorage) Atomic(ctx context.Context, fn func(tx contracts.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := &memoryTx{
		users:    maps.Clone(m.users),
		byName:   maps.Clone(m.byName),
		sessions: maps.Clone(m.sessions),
		profiles: maps.Clone(m.profiles),
	}
	if err := fn(staged); err != nil {
		return err
	}
	m.users, m.byName, m.sessions, m.profiles = staged.users, staged.byName, staged.sessions, staged.profiles
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

type memoryTx struct {
	users    map[string]models.User
	byName   map[string]string
	sessions map[string]models.Session
	profiles map[string]models.Profile
}

func (t *memoryTx) InsertUser(ctx context.Context, user *models.User) error {
	if _, ok := t.byName[user.Username]; ok {
		return contracts.ErrConflict
	}
	if _, ok := t.users[user.ID]; ok {
		return contracts.ErrConflict
	}
	t.users[user.ID] = *copyUser(*user)
	t.byName[user.Username] = user.ID
	return nil
}

func (t *memoryTx) UpdateUser(ctx context.Context, id string, update models.UserUpdate) error {
	user, ok := t.users[id]
	if !ok {
		return contracts.ErrNotFound
	}
	if update.SecondFactorSecret != nil {
		user.SecondFactorSecret = append([]byte(nil), update.SecondFactorSecret...)
	}
	if update.SecondFactorConfirmed != nil {
		user.SecondFactorConfirmed = *update.SecondFactorConfirmed
	}
	t.users[id] = user
	return nil
}

func (t *memoryTx) InsertProfile(ctx context.Context, profile *models.Profile) error {
	if _, ok := t.users[profile.UserID]; !ok {
		return contracts.ErrNotFound
	}
	if _, ok := t.profiles[profile.UserID]; ok {
		return contracts.ErrConflict
	}
	t.profiles[profile.UserID] = *profile
	return nil
}

func (t *memoryTx) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	if _, ok := t.profiles[profile.UserID]; !ok {
		return contracts.ErrNotFound
	}
	t.profiles[profile.UserID] = *profile
	return nil
}

func (t *memoryTx) InsertSession(ctx context.Context, session *models.Session) error {
	if _, ok := t.sessions[session.ID]; ok {
		return contracts.ErrConflict
	}
	if _, ok := t.users[session.UserID]; !ok {
		return contracts.ErrNotFound
	}
	stored := *session
	stored.Fresh = false
	t.sessions[session.ID] = stored
	return nil
}

func (t *memoryTx) DeleteSession(ctx context.Context, id string) (bool, error) {
	_, ok := t.sessions[id]
	delete(t.sessions, id)
	return ok, nil
}

func copyUser(user models.User) *models.User {
	if user.SecondFactorSecret != nil {
		user.SecondFactorSecret = append([]byte(nil), user.SecondFactorSecret...)
	}
	return &user
}
