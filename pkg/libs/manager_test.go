package libs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/gate"
	"github.com/oarkflow/whitebox/pkg/http/requests"
	"github.com/oarkflow/whitebox/pkg/models"
	"github.com/oarkflow/whitebox/pkg/password"
	"github.com/oarkflow/whitebox/pkg/ratelimit"
	"github.com/oarkflow/whitebox/pkg/session"
	"github.com/oarkflow/whitebox/pkg/storage"
)

type fixedScore int

func (f fixedScore) Score(string, []string) int { return int(f) }

const goodPassword = "Tr1cky-Pass"

var client = Client{IP: "203.0.113.7", UserAgent: "go-test"}

func testConfig() *Config {
	return &Config{
		AppName:          "Whitebox",
		Env:              "development",
		Secret:           []byte("0123456789abcdef0123456789abcdef"),
		SessionName:      "auth_session",
		Session:          session.Config{Lifetime: 720 * time.Hour, RenewWithin: 360 * time.Hour},
		Argon:            password.DefaultConfig(),
		TOTPIssuer:       "Whitebox",
		TOTPSkew:         1,
		MinPasswordScore: 4,
		Rules:            DefaultRuleSets(),
	}
}

func newTestManager(t *testing.T) (*Manager, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	m, err := NewManager(store, ratelimit.NewMemoryCounter(), testConfig(),
		WithScorer(fixedScore(4)),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	return m, store
}

func signup(t *testing.T, m *Manager, username string) (*models.Session, *models.User) {
	t.Helper()
	s, err := m.Signup(context.Background(), Client{IP: "198.51.100." + username[:1], UserAgent: username}, requests.SignRequest{Username: username, Password: goodPassword})
	require.NoError(t, err)
	user, err := m.Store.GetUserByID(context.Background(), s.UserID)
	require.NoError(t, err)
	return s, user
}

func enroll(t *testing.T, m *Manager, s *models.Session, user *models.User) (*models.Session, *models.User) {
	t.Helper()
	ctx := context.Background()
	_, err := m.FactorSetup(ctx, user)
	require.NoError(t, err)
	code, err := m.TOTP.Code(user.SecondFactorSecret, time.Now())
	require.NoError(t, err)
	passed, err := m.VerifyFactor(ctx, client, s, user, requests.FactorCodeRequest{Code: code}, true)
	require.NoError(t, err)
	user, err = m.Store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	return passed, user
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = []byte("short")
	_, err := NewManager(storage.NewMemoryStorage(), ratelimit.NewMemoryCounter(), cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Argon.Memory = 1024
	_, err = NewManager(storage.NewMemoryStorage(), ratelimit.NewMemoryCounter(), cfg)
	assert.Error(t, err)
}

func TestSignupThenLogin(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, user := signup(t, m, "alice_uno")
	assert.False(t, s.SecondFactorPassed)
	assert.False(t, user.SecondFactorConfirmed)
	assert.Equal(t, 1, store.ProfileCount())
	profile, err := store.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NewProfile(user.ID), *profile)

	loggedIn, err := m.Login(ctx, client, requests.SignRequest{Username: "alice_uno", Password: goodPassword})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.UserID)
	assert.False(t, loggedIn.SecondFactorPassed)
	assert.NotEqual(t, s.ID, loggedIn.ID)
}

func TestSignupValidation(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	_, err := m.Signup(ctx, client, requests.SignRequest{Username: "alice_01", Password: goodPassword})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "username")

	m.Scorer = fixedScore(3)
	_, err = m.Signup(ctx, client, requests.SignRequest{Username: "alice", Password: goodPassword})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, msgWeakPassword, validation.Fields["password"])
	assert.Equal(t, 0, store.ProfileCount())
}

func TestSignupExistingUsername(t *testing.T) {
	m, _ := newTestManager(t)
	signup(t, m, "alice")
	_, err := m.Signup(context.Background(), Client{IP: "192.0.2.1"}, requests.SignRequest{Username: "alice", Password: goodPassword})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, msgUsernameTaken, conflict.Message)
}

func TestConcurrentSignupSameUsername(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Signup(ctx, Client{IP: "192.0.2." + string(rune('1'+i))}, requests.SignRequest{Username: "racer", Password: goodPassword})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, store.ProfileCount())
	assert.Equal(t, 1, store.SessionCount())
}

func TestSignupRaceAtInsertIsConflict(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	m.Store = &racingStore{MemoryStorage: store, username: "late"}

	_, err := m.Signup(ctx, client, requests.SignRequest{Username: "late", Password: goodPassword})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, msgUsernameRace, conflict.Message)
	assert.Equal(t, 1, store.ProfileCount(), "only the winner's profile exists")
}

// racingStore inserts a competing account right after the existence check.
type racingStore struct {
	*storage.MemoryStorage
	username string
	once     sync.Once
}

func (r *racingStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := r.MemoryStorage.GetUserByUsername(ctx, username)
	r.once.Do(func() {
		_ = r.MemoryStorage.Atomic(ctx, func(tx contracts.Tx) error {
			if err := tx.InsertUser(ctx, &models.User{ID: "winner", Username: r.username, PasswordHash: "x"}); err != nil {
				return err
			}
			profile := models.NewProfile("winner")
			return tx.InsertProfile(ctx, &profile)
		})
	})
	return user, err
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	m, _ := newTestManager(t)
	signup(t, m, "bob")
	ctx := context.Background()

	_, unknown := m.Login(ctx, client, requests.SignRequest{Username: "nobody", Password: goodPassword})
	_, wrong := m.Login(ctx, client, requests.SignRequest{Username: "bob", Password: "Wr0ng-Pass"})

	var a, b *AuthenticationError
	require.ErrorAs(t, unknown, &a)
	require.ErrorAs(t, wrong, &b)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, msgBadCredentials, a.Message)
}

func TestLoginRateLimitIgnoresMalformedRequests(t *testing.T) {
	m, _ := newTestManager(t)
	m.Limiters.Login = ratelimit.New("login", ratelimit.NewMemoryCounter(),
		ratelimit.Rule{Name: "username", Key: ratelimit.ByField, Limit: 5, Window: 15 * time.Minute})
	ctx := context.Background()
	req := requests.SignRequest{Username: "carol", Password: "Wr0ng-Pass"}

	for i := 0; i < 4; i++ {
		_, err := m.Login(ctx, client, req)
		var authErr *AuthenticationError
		require.ErrorAs(t, err, &authErr)
	}
	_, err := m.Login(ctx, client, requests.SignRequest{Username: "carol", Password: "x"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = m.Login(ctx, client, req)
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr, "the malformed attempt must not have counted")

	_, err = m.Login(ctx, client, req)
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, "username", limited.Field)
	assert.Greater(t, limited.RetryAfter, time.Duration(0))
}

func TestFactorSetupReusesSecret(t *testing.T) {
	m, _ := newTestManager(t)
	_, user := signup(t, m, "dave")
	ctx := context.Background()

	first, err := m.FactorSetup(ctx, user)
	require.NoError(t, err)
	reloaded, err := m.Store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	second, err := m.FactorSetup(ctx, reloaded)
	require.NoError(t, err)
	assert.Equal(t, first.Secret, second.Secret)
	assert.Contains(t, first.URI, "otpauth://totp/")
	assert.False(t, reloaded.SecondFactorConfirmed)
}

func TestSignupFactorConfirmsAndKeepsSessionID(t *testing.T) {
	m, _ := newTestManager(t)
	s, user := signup(t, m, "erin")

	passed, user := enroll(t, m, s, user)
	assert.Equal(t, s.ID, passed.ID)
	assert.True(t, passed.SecondFactorPassed)
	assert.True(t, user.SecondFactorConfirmed)

	token, err := m.Sessions.Token(passed)
	require.NoError(t, err)
	decision, current, _ := m.Authenticate(context.Background(), token, "/settings")
	assert.Equal(t, gate.FullyAuthenticated, decision.State)
	assert.True(t, decision.Admit())
	assert.Equal(t, s.ID, current.ID)
}

func TestLoginFactorDoesNotTouchConfirmation(t *testing.T) {
	m, _ := newTestManager(t)
	s, user := signup(t, m, "frank")
	_, user = enroll(t, m, s, user)
	ctx := context.Background()

	loggedIn, err := m.Login(ctx, client, requests.SignRequest{Username: "frank", Password: goodPassword})
	require.NoError(t, err)
	token, err := m.Sessions.Token(loggedIn)
	require.NoError(t, err)
	decision, _, _ := m.Authenticate(ctx, token, "/settings")
	assert.Equal(t, gate.FactorPending, decision.State)
	assert.Equal(t, "/login/factor", decision.Redirect)

	_, err = m.VerifyFactor(ctx, client, loggedIn, user, requests.FactorCodeRequest{Code: "000000"}, false)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		// 000000 happened to be the live code; nothing else to assert.
		require.NoError(t, err)
		return
	}
	assert.Equal(t, msgIncorrectCode, authErr.Message)

	code, err := m.TOTP.Code(user.SecondFactorSecret, time.Now())
	require.NoError(t, err)
	passed, err := m.VerifyFactor(ctx, client, loggedIn, user, requests.FactorCodeRequest{Code: code}, false)
	require.NoError(t, err)
	assert.True(t, passed.SecondFactorPassed)
	assert.Equal(t, loggedIn.ID, passed.ID)
}

func TestVerifyFactorWithoutSecret(t *testing.T) {
	m, _ := newTestManager(t)
	s, user := signup(t, m, "gina")
	_, err := m.VerifyFactor(context.Background(), client, s, user, requests.FactorCodeRequest{Code: "123456"}, true)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, msgNoFactor, validation.Fields["code"])
}

func TestVerifyFactorTransitionFailure(t *testing.T) {
	m, store := newTestManager(t)
	s, user := signup(t, m, "hank")
	ctx := context.Background()
	_, err := m.FactorSetup(ctx, user)
	require.NoError(t, err)
	m.Store = &failingAtomicStore{MemoryStorage: store}

	code, err := m.TOTP.Code(user.SecondFactorSecret, time.Now())
	require.NoError(t, err)
	_, err = m.VerifyFactor(ctx, client, s, user, requests.FactorCodeRequest{Code: code}, true)
	var transition *StateTransitionError
	require.ErrorAs(t, err, &transition)

	reloaded, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.SecondFactorConfirmed)
}

type failingAtomicStore struct {
	*storage.MemoryStorage
}

func (f *failingAtomicStore) Atomic(ctx context.Context, fn func(tx contracts.Tx) error) error {
	return errors.New("disk full")
}

func TestUnconfirmedUserIsSentToEnrollmentEverywhere(t *testing.T) {
	m, _ := newTestManager(t)
	s, _ := signup(t, m, "ivy")
	token, err := m.Sessions.Token(s)
	require.NoError(t, err)

	for _, path := range []string{"/", "/login", "/signup", "/login/factor", "/settings", "/api/me"} {
		decision, _, _ := m.Authenticate(context.Background(), token, path)
		assert.Equal(t, gate.FactorUnset, decision.State, path)
		assert.Equal(t, "/signup/factor", decision.Redirect, path)
	}
	decision, _, _ := m.Authenticate(context.Background(), token, "/signup/factor")
	assert.True(t, decision.Admit())
}

func TestLogout(t *testing.T) {
	m, store := newTestManager(t)
	s, _ := signup(t, m, "jack")
	ctx := context.Background()

	assert.ErrorIs(t, m.Logout(ctx, nil), ErrNoSession)
	require.NoError(t, m.Logout(ctx, s))
	require.NoError(t, m.Logout(ctx, s))
	assert.Equal(t, 0, store.SessionCount())
}

func TestProfilePicture(t *testing.T) {
	m, _ := newTestManager(t)
	_, user := signup(t, m, "kate")
	ctx := context.Background()

	view, err := m.ProfilePicture(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, &ProfilePicture{Angle: 45, Color1: "#888888", Opacity1: 100, Color2: "#000000", Opacity2: 0}, view)

	err = m.UpdateProfilePicture(ctx, user, requests.ProfilePictureRequest{Angle: 400, Color1: "#fff", Color2: "#000000"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	require.NoError(t, m.UpdateProfilePicture(ctx, user, requests.ProfilePictureRequest{
		Angle: 90, Color1: "#FF0000", Opacity1: 50, Color2: "#00ff00", Opacity2: 100,
	}))
	view, err = m.ProfilePicture(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, &ProfilePicture{Angle: 90, Color1: "#ff0000", Opacity1: 50, Color2: "#00ff00", Opacity2: 100}, view)
}

func TestAuthenticateClearsUnknownToken(t *testing.T) {
	m, _ := newTestManager(t)
	decision, current, user := m.Authenticate(context.Background(), "garbage", "/settings")
	assert.Nil(t, current)
	assert.Nil(t, user)
	assert.True(t, decision.ClearToken)
	assert.Equal(t, "/login", decision.Redirect)
}

// unreachableStore starts failing every session and user lookup once down
// is set.
type unreachableStore struct {
	*storage.MemoryStorage
	down bool
}

func (u *unreachableStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if u.down {
		return nil, errors.New("connection reset")
	}
	return u.MemoryStorage.GetSession(ctx, id)
}

func (u *unreachableStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if u.down {
		return nil, errors.New("connection reset")
	}
	return u.MemoryStorage.GetUserByID(ctx, id)
}

func TestAuthenticateFailsClosedOnStoreError(t *testing.T) {
	store := &unreachableStore{MemoryStorage: storage.NewMemoryStorage()}
	m, err := NewManager(store, ratelimit.NewMemoryCounter(), testConfig(),
		WithScorer(fixedScore(4)),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	s, user := signup(t, m, "lena")
	passed, _ := enroll(t, m, s, user)
	token, err := m.Sessions.Token(passed)
	require.NoError(t, err)

	decision, _, _ := m.Authenticate(context.Background(), token, "/settings")
	require.Equal(t, gate.FullyAuthenticated, decision.State)

	store.down = true
	decision, current, resolved := m.Authenticate(context.Background(), token, "/settings")
	assert.Nil(t, current)
	assert.Nil(t, resolved)
	assert.Equal(t, gate.Anonymous, decision.State)
	assert.Equal(t, "/login", decision.Redirect)
	assert.True(t, decision.ClearToken)
	assert.False(t, decision.Admit())
}
