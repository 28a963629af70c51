package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/gate"
	"github.com/oarkflow/whitebox/pkg/libs"
	"github.com/oarkflow/whitebox/pkg/models"
	"github.com/oarkflow/whitebox/pkg/objects"
	"github.com/oarkflow/whitebox/pkg/password"
	"github.com/oarkflow/whitebox/pkg/ratelimit"
	"github.com/oarkflow/whitebox/pkg/session"
	"github.com/oarkflow/whitebox/pkg/storage"
)

// flakyStore fails session lookups once down is set.
type flakyStore struct {
	*storage.MemoryStorage
	down bool
}

func (f *flakyStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if f.down {
		return nil, errors.New("connection reset")
	}
	return f.MemoryStorage.GetSession(ctx, id)
}

func newGateApp(t *testing.T) (*fiber.App, *libs.Manager) {
	return newGateAppWithStore(t, storage.NewMemoryStorage())
}

func newGateAppWithStore(t *testing.T, store contracts.Store) (*fiber.App, *libs.Manager) {
	t.Helper()
	cfg := &libs.Config{
		Env:         "development",
		Secret:      []byte("0123456789abcdef0123456789abcdef"),
		SessionName: "auth_session",
		Session:     session.Config{Lifetime: time.Hour, RenewWithin: 10 * time.Minute},
		Argon:       password.DefaultConfig(),
		Rules:       libs.DefaultRuleSets(),
	}
	manager, err := libs.NewManager(store, ratelimit.NewMemoryCounter(), cfg, libs.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	objects.Manager = manager

	app := fiber.New()
	app.Use(SecurityHeaders(true))
	app.Use(RequestLogger(zaptest.NewLogger(t)))
	app.Use(Gate)
	app.Get("/*", func(c *fiber.Ctx) error {
		auth := CurrentAuth(c)
		assert.Same(t, auth, FromContext(c.UserContext()))
		return c.SendString(auth.State.String())
	})
	return app, manager
}

func createUser(t *testing.T, m *libs.Manager, confirmed bool) *models.User {
	t.Helper()
	user := &models.User{ID: "u1", Username: "dana", PasswordHash: "x", SecondFactorSecret: []byte("secret"), SecondFactorConfirmed: confirmed}
	require.NoError(t, m.Store.Atomic(context.Background(), func(tx contracts.Tx) error {
		return tx.InsertUser(context.Background(), user)
	}))
	return user
}

func request(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "auth_session", Value: token})
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "auth_session" {
			return c
		}
	}
	return nil
}

func TestGateRedirectsAnonymous(t *testing.T) {
	app, _ := newGateApp(t)

	resp := request(t, app, "/settings", "")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get(fiber.HeaderLocation))
	assert.Nil(t, sessionCookie(resp))
	assert.Equal(t, "DENY", resp.Header.Get(fiber.HeaderXFrameOptions))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderStrictTransportSecurity))

	resp = request(t, app, "/login", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGateClearsUnknownToken(t *testing.T) {
	app, _ := newGateApp(t)

	resp := request(t, app, "/", "bogus")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}

func TestGateAdmitsFullyAuthenticated(t *testing.T) {
	app, m := newGateApp(t)
	user := createUser(t, m, true)
	s, err := m.Sessions.CreateSession(context.Background(), user.ID, true)
	require.NoError(t, err)
	token, err := m.Sessions.Token(s)
	require.NoError(t, err)

	resp := request(t, app, "/settings", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get(fiber.HeaderCacheControl))
	assert.Nil(t, sessionCookie(resp))

	resp = request(t, app, "/signup", token)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/settings", resp.Header.Get(fiber.HeaderLocation))
}

func TestGateSendsPendingUserToVerification(t *testing.T) {
	app, m := newGateApp(t)
	user := createUser(t, m, true)
	s, err := m.Sessions.CreateSession(context.Background(), user.ID, false)
	require.NoError(t, err)
	token, err := m.Sessions.Token(s)
	require.NoError(t, err)

	resp := request(t, app, "/settings", token)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/login/factor", resp.Header.Get(fiber.HeaderLocation))
}

func TestGateFailsClosedWhenStoreIsDown(t *testing.T) {
	store := &flakyStore{MemoryStorage: storage.NewMemoryStorage()}
	app, m := newGateAppWithStore(t, store)
	user := createUser(t, m, true)
	s, err := m.Sessions.CreateSession(context.Background(), user.ID, true)
	require.NoError(t, err)
	token, err := m.Sessions.Token(s)
	require.NoError(t, err)

	resp := request(t, app, "/settings", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	store.down = true
	resp = request(t, app, "/settings", token)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get(fiber.HeaderLocation))
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}

func TestCurrentAuthWithoutGate(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		auth := CurrentAuth(c)
		assert.Equal(t, gate.Anonymous, auth.State)
		assert.False(t, auth.Authenticated())
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
