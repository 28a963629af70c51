package middlewares

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/oarkflow/whitebox/pkg/gate"
	"github.com/oarkflow/whitebox/pkg/models"
	"github.com/oarkflow/whitebox/pkg/objects"
	"github.com/oarkflow/whitebox/pkg/utils"
)

const authLocal = "auth"

type authKey struct{}

// AuthContext is the identity attached to one request.
type AuthContext struct {
	State   gate.State
	Session *models.Session
	User    *models.User
}

func (a *AuthContext) Authenticated() bool {
	return a != nil && a.State == gate.FullyAuthenticated
}

// Gate resolves the session cookie once and applies the authentication
// state machine before any handler runs.
func Gate(c *fiber.Ctx) error {
	manager := objects.Manager
	name := manager.Config.SessionName
	secure := manager.Config.SecureCookies()

	decision, current, user := manager.Authenticate(c.UserContext(), c.Cookies(name), c.Path())
	if decision.RenewToken {
		token, err := manager.Sessions.Token(current)
		if err != nil {
			return err
		}
		c.Cookie(utils.GetCookie(secure, name, token, manager.Sessions.Lifetime()))
	}
	if decision.ClearToken {
		c.Cookie(utils.GetCookie(secure, name, manager.Sessions.BlankToken(), -1))
	}
	if !decision.Admit() {
		return c.Redirect(decision.Redirect, fiber.StatusTemporaryRedirect)
	}

	auth := &AuthContext{State: decision.State, Session: current, User: user}
	c.Locals(authLocal, auth)
	c.SetUserContext(context.WithValue(c.UserContext(), authKey{}, auth))
	if current != nil {
		NoCache(c)
	}
	return c.Next()
}

// CurrentAuth returns the identity Gate attached, or an anonymous one.
func CurrentAuth(c *fiber.Ctx) *AuthContext {
	if auth, ok := c.Locals(authLocal).(*AuthContext); ok && auth != nil {
		return auth
	}
	return &AuthContext{State: gate.Anonymous}
}

// FromContext is CurrentAuth for code that only sees the request context.
func FromContext(ctx context.Context) *AuthContext {
	if auth, ok := ctx.Value(authKey{}).(*AuthContext); ok && auth != nil {
		return auth
	}
	return &AuthContext{State: gate.Anonymous}
}

func NoCache(c *fiber.Ctx) {
	c.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Set("Pragma", "no-cache")
	c.Set("Expires", "0")
}

func SendError(c *fiber.Ctx, status int, message string) error {
	if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   message,
			"status":  status,
		})
	}
	return fiber.NewError(status, message)
}
