package libs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oarkflow/xid/wuid"
	"go.uber.org/zap"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/gate"
	"github.com/oarkflow/whitebox/pkg/http/requests"
	"github.com/oarkflow/whitebox/pkg/models"
	"github.com/oarkflow/whitebox/pkg/password"
	"github.com/oarkflow/whitebox/pkg/ratelimit"
	"github.com/oarkflow/whitebox/pkg/session"
)

const (
	msgBadCredentials = "Username doesn't exist or the password is incorrect"
	msgWeakPassword   = "Still weak! Probably related to username"
	msgUsernameTaken  = "This username is already taken"
	msgUsernameRace   = "Sorry, this username just got taken"
	msgIncorrectCode  = "Incorrect"
	msgNoFactor       = "Second factor is not set up"
)

// Client identifies the caller for rate limiting and audit purposes.
type Client struct {
	IP        string
	UserAgent string
}

type Limiters struct {
	Signup       *ratelimit.Limiter
	Login        *ratelimit.Limiter
	SignupFactor *ratelimit.Limiter
	LoginFactor  *ratelimit.Limiter
}

// NewLimiters builds the per-action limiters on top of one counter.
func NewLimiters(counter ratelimit.Counter, rules RuleSets) Limiters {
	return Limiters{
		Signup:       ratelimit.New("signup", counter, rules.Signup...),
		Login:        ratelimit.New("login", counter, rules.Login...),
		SignupFactor: ratelimit.New("signup_factor", counter, rules.SignupFactor...),
		LoginFactor:  ratelimit.New("login_factor", counter, rules.LoginFactor...),
	}
}

// Manager runs the authentication actions against the store.
type Manager struct {
	Store    contracts.Store
	Sessions *session.Manager
	Hasher   *password.Argon2
	Scorer   contracts.PasswordScorer
	TOTP     TOTP
	Limiters Limiters
	Audit    *AuditLogger
	Pages    gate.Pages
	Config   *Config

	now       func() time.Time
	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Manager)

func WithScorer(scorer contracts.PasswordScorer) Option {
	return func(m *Manager) { m.Scorer = scorer }
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.Audit = NewAuditLogger(log) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithPages(pages gate.Pages) Option {
	return func(m *Manager) { m.Pages = pages }
}

func NewManager(store contracts.Store, counter ratelimit.Counter, cfg *Config, opts ...Option) (*Manager, error) {
	hasher, err := password.NewArgon2(cfg.Argon)
	if err != nil {
		return nil, err
	}
	codec, err := session.NewPasetoCodec(cfg.Secret)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		Store:    store,
		Sessions: session.NewManager(store, codec, cfg.Session),
		Hasher:   hasher,
		Scorer:   password.Strength{},
		TOTP:     TOTP{Issuer: cfg.TOTPIssuer, Skew: cfg.TOTPSkew},
		Limiters: NewLimiters(counter, cfg.Rules),
		Audit:    NewAuditLogger(nil),
		Pages:    gate.DefaultPages(),
		Config:   cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// limit consumes one attempt and converts a rejection into a form error.
func (m *Manager) limit(ctx context.Context, limiter *ratelimit.Limiter, client Client, username, field string) error {
	res, err := limiter.Check(ctx, ratelimit.Identity{IP: client.IP, UserAgent: client.UserAgent, Field: username})
	if err != nil {
		return err
	}
	if res.Limited {
		m.Audit.LogEvent(EventRateLimited,
			zap.String("limiter", limiter.Name()),
			zap.String("username", username),
			zap.String("ip", client.IP),
			zap.Int("retry_after", res.RetryAfterSeconds()),
		)
		return &RateLimitedError{Field: field, RetryAfter: res.RetryAfter}
	}
	return nil
}

// Signup registers a user with a default profile picture and opens a session
// that still has to pass the second factor.
func (m *Manager) Signup(ctx context.Context, client Client, req requests.SignRequest) (*models.Session, error) {
	if errs := req.Validate(); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}
	if m.Scorer.Score(req.Password, []string{req.Username}) < m.Config.MinPasswordScore {
		return nil, NewValidationError("password", msgWeakPassword)
	}
	_, err := m.Store.GetUserByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return nil, &ConflictError{Field: "username", Message: msgUsernameTaken}
	case !errors.Is(err, contracts.ErrNotFound):
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	if err := m.limit(ctx, m.Limiters.Signup, client, req.Username, "username"); err != nil {
		return nil, err
	}
	hash, err := m.Hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		ID:           wuid.New().String(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    m.now(),
	}
	var created *models.Session
	err = m.Store.Atomic(ctx, func(tx contracts.Tx) error {
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		profile := models.NewProfile(user.ID)
		if err := tx.InsertProfile(ctx, &profile); err != nil {
			return err
		}
		var err error
		created, err = m.Sessions.Insert(ctx, tx, user.ID, false)
		return err
	})
	if errors.Is(err, contracts.ErrConflict) {
		m.Audit.LogEvent(EventSignupFailed, zap.String("username", req.Username), zap.String("reason", "username_race"))
		return nil, &ConflictError{Field: "username", Message: msgUsernameRace}
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	m.Audit.LogEvent(EventSignup, zap.String("user_id", user.ID), zap.String("username", user.Username), zap.String("ip", client.IP))
	return created, nil
}

// Login checks the password and opens a session that still has to pass the
// second factor. Unknown users and wrong passwords fail identically.
func (m *Manager) Login(ctx context.Context, client Client, req requests.SignRequest) (*models.Session, error) {
	if errs := req.Validate(); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}
	if err := m.limit(ctx, m.Limiters.Login, client, req.Username, "username"); err != nil {
		return nil, err
	}
	user, err := m.Store.GetUserByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, contracts.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	encoded := m.dummyPasswordHash()
	if user != nil {
		encoded = user.PasswordHash
	}
	ok, err := m.Hasher.Verify(req.Password, encoded)
	if err != nil && user != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if user == nil || !ok {
		m.Audit.LogEvent(EventLoginFailed, zap.String("username", req.Username), zap.String("ip", client.IP))
		return nil, &AuthenticationError{Field: "username", Message: msgBadCredentials}
	}
	created, err := m.Sessions.CreateSession(ctx, user.ID, false)
	if err != nil {
		return nil, err
	}
	m.Audit.LogEvent(EventLogin, zap.String("user_id", user.ID), zap.String("ip", client.IP))
	return created, nil
}

// dummyPasswordHash gives unknown usernames something to verify against so
// both outcomes cost the same.
func (m *Manager) dummyPasswordHash() string {
	m.dummyOnce.Do(func() {
		secret, err := GenerateSecondFactorSecret()
		if err != nil {
			return
		}
		m.dummyHash, _ = m.Hasher.Hash(Base32Secret(secret))
	})
	return m.dummyHash
}

// FactorSetup returns what the enrollment page shows, generating and storing
// the secret the first time.
func (m *Manager) FactorSetup(ctx context.Context, user *models.User) (*models.SecondFactorSetup, error) {
	secret := user.SecondFactorSecret
	if len(secret) == 0 {
		generated, err := GenerateSecondFactorSecret()
		if err != nil {
			return nil, err
		}
		err = m.Store.Atomic(ctx, func(tx contracts.Tx) error {
			return tx.UpdateUser(ctx, user.ID, models.UserUpdate{SecondFactorSecret: generated})
		})
		if err != nil {
			return nil, fmt.Errorf("store second factor secret: %w", err)
		}
		secret = generated
		user.SecondFactorSecret = generated
		m.Audit.LogEvent(EventFactorEnrolled, zap.String("user_id", user.ID))
	}
	uri, err := m.TOTP.EnrollmentURI(user.Username, secret)
	if err != nil {
		return nil, err
	}
	qr, err := QRCodeDataURL(uri)
	if err != nil {
		return nil, err
	}
	return &models.SecondFactorSetup{
		URI:     uri,
		Secret:  Base32Secret(secret),
		QRCode:  qr,
		Account: user.Username,
	}, nil
}

// VerifyFactor checks a TOTP code for the session's user. On success the
// session is replaced, keeping its id, with the factor flag set. When
// markConfirmed is set the user's enrollment is confirmed in the same unit.
func (m *Manager) VerifyFactor(ctx context.Context, client Client, current *models.Session, user *models.User, req requests.FactorCodeRequest, markConfirmed bool) (*models.Session, error) {
	if current == nil || user == nil {
		return nil, ErrNoSession
	}
	if errs := req.Validate(); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}
	limiter := m.Limiters.LoginFactor
	if markConfirmed {
		limiter = m.Limiters.SignupFactor
	}
	if err := m.limit(ctx, limiter, client, user.Username, "code"); err != nil {
		return nil, err
	}
	stored, err := m.Store.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(stored.SecondFactorSecret) == 0 {
		return nil, NewValidationError("code", msgNoFactor)
	}
	if !m.TOTP.Verify(stored.SecondFactorSecret, req.Code, m.now()) {
		m.Audit.LogEvent(EventFactorFailed, zap.String("user_id", user.ID), zap.String("ip", client.IP))
		return nil, &AuthenticationError{Field: "code", Message: msgIncorrectCode}
	}
	var replaced *models.Session
	err = m.Store.Atomic(ctx, func(tx contracts.Tx) error {
		if markConfirmed {
			confirmed := true
			if err := tx.UpdateUser(ctx, user.ID, models.UserUpdate{SecondFactorConfirmed: &confirmed}); err != nil {
				return err
			}
		}
		var err error
		replaced, err = m.Sessions.Replace(ctx, tx, current, true)
		return err
	})
	if err != nil {
		transition := &StateTransitionError{Op: "pass second factor", Err: err}
		m.Audit.LogError(EventTransitionError, transition, zap.String("user_id", user.ID), zap.String("session_id", current.ID))
		return nil, transition
	}
	m.Audit.LogEvent(EventFactorPassed, zap.String("user_id", user.ID), zap.Bool("enrollment", markConfirmed))
	return replaced, nil
}

// Logout ends the session.
func (m *Manager) Logout(ctx context.Context, current *models.Session) error {
	if current == nil {
		return ErrNoSession
	}
	if err := m.Sessions.InvalidateSession(ctx, current.ID); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	m.Audit.LogEvent(EventLogout, zap.String("user_id", current.UserID))
	return nil
}

// ProfilePicture is the settings form view of a stored profile.
type ProfilePicture struct {
	Angle    int
	Color1   string
	Opacity1 int
	Color2   string
	Opacity2 int
}

func (m *Manager) ProfilePicture(ctx context.Context, userID string) (*ProfilePicture, error) {
	profile, err := m.Store.GetProfile(ctx, userID)
	if errors.Is(err, contracts.ErrNotFound) {
		def := models.NewProfile(userID)
		profile = &def
	} else if err != nil {
		return nil, fmt.Errorf("load profile picture: %w", err)
	}
	color1, opacity1 := SplitOpacity(profile.Color1)
	color2, opacity2 := SplitOpacity(profile.Color2)
	return &ProfilePicture{
		Angle:    profile.Angle,
		Color1:   color1,
		Opacity1: opacity1,
		Color2:   color2,
		Opacity2: opacity2,
	}, nil
}

func (m *Manager) UpdateProfilePicture(ctx context.Context, user *models.User, req requests.ProfilePictureRequest) error {
	if user == nil {
		return ErrNoSession
	}
	if errs := req.Validate(); errs != nil {
		return &ValidationError{Fields: errs}
	}
	profile := &models.Profile{
		UserID: user.ID,
		Angle:  req.Angle,
		Color1: SetOpacity(req.Color1, req.Opacity1),
		Color2: SetOpacity(req.Color2, req.Opacity2),
	}
	err := m.Store.Atomic(ctx, func(tx contracts.Tx) error {
		return tx.UpdateProfile(ctx, profile)
	})
	if err != nil {
		return fmt.Errorf("update profile picture: %w", err)
	}
	m.Audit.LogEvent(EventProfileUpdated, zap.String("user_id", user.ID))
	return nil
}

// Authenticate resolves a client token and applies the gate to page. It is
// the single evaluation performed per request.
func (m *Manager) Authenticate(ctx context.Context, token, path string) (gate.Decision, *models.Session, *models.User) {
	current, user, err := m.Sessions.Validate(ctx, token)
	if err != nil {
		m.Audit.LogFailure(EventSessionInvalid, err, zap.String("path", path))
		current, user = nil, nil
	}
	if token != "" && current == nil {
		m.Audit.LogEvent(EventSessionInvalid, zap.String("path", path))
	}
	if current != nil && current.Fresh {
		m.Audit.LogEvent(EventSessionRenewed, zap.String("user_id", current.UserID))
	}
	decision := m.Pages.Evaluate(gate.Evidence{
		TokenPresent: token != "",
		Session:      current,
		User:         user,
	}, m.Pages.Classify(path))
	return decision, current, user
}
