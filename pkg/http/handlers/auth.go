package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/oarkflow/whitebox/pkg/http/middlewares"
	"github.com/oarkflow/whitebox/pkg/http/requests"
	"github.com/oarkflow/whitebox/pkg/http/responses"
	"github.com/oarkflow/whitebox/pkg/libs"
	"github.com/oarkflow/whitebox/pkg/objects"
	"github.com/oarkflow/whitebox/pkg/utils"
)

func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

func LandingPage(c *fiber.Ctx) error {
	data := page(c, "Whitebox")
	data["Authenticated"] = middlewares.CurrentAuth(c).Authenticated()
	return responses.Render(c, utils.LandingTemplate, data)
}

func LoginPage(c *fiber.Ctx) error {
	return responses.Render(c, utils.LoginTemplate, page(c, "Log in"))
}

func PostLogin(c *fiber.Ctx) error {
	var req requests.SignRequest
	data := page(c, "Log in")
	if err := c.BodyParser(&req); err != nil {
		return renderForm(c, utils.LoginTemplate, data, libs.NewValidationError("username", "Invalid form data"))
	}
	data["Form"] = fiber.Map{"Username": req.Username}
	created, err := objects.Manager.Login(c.UserContext(), client(c), req)
	if err != nil {
		retryAfterHeader(c, err)
		return renderForm(c, utils.LoginTemplate, data, err)
	}
	if err := setSessionCookie(c, created); err != nil {
		return err
	}
	return c.Redirect(utils.LoginFactorURI, fiber.StatusSeeOther)
}

func SignupPage(c *fiber.Ctx) error {
	return responses.Render(c, utils.SignupTemplate, page(c, "Sign up"))
}

func PostSignup(c *fiber.Ctx) error {
	var req requests.SignRequest
	data := page(c, "Sign up")
	if err := c.BodyParser(&req); err != nil {
		return renderForm(c, utils.SignupTemplate, data, libs.NewValidationError("username", "Invalid form data"))
	}
	data["Form"] = fiber.Map{"Username": req.Username}
	created, err := objects.Manager.Signup(c.UserContext(), client(c), req)
	if err != nil {
		retryAfterHeader(c, err)
		return renderForm(c, utils.SignupTemplate, data, err)
	}
	if err := setSessionCookie(c, created); err != nil {
		return err
	}
	return c.Redirect(utils.SignupFactorURI, fiber.StatusSeeOther)
}

// Logout serves every logout path. Without a session there is nothing to end.
func Logout(c *fiber.Ctx) error {
	auth := middlewares.CurrentAuth(c)
	err := objects.Manager.Logout(c.UserContext(), auth.Session)
	if errors.Is(err, libs.ErrNoSession) {
		return middlewares.SendError(c, fiber.StatusUnauthorized, "You are not logged in")
	}
	if err != nil {
		return err
	}
	clearSessionCookie(c)
	return flash.WithSuccess(c, fiber.Map{"message": "You have been logged out"}).Redirect(utils.LoginURI, fiber.StatusSeeOther)
}
