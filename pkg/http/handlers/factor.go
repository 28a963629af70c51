package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oarkflow/whitebox/pkg/http/middlewares"
	"github.com/oarkflow/whitebox/pkg/http/requests"
	"github.com/oarkflow/whitebox/pkg/http/responses"
	"github.com/oarkflow/whitebox/pkg/libs"
	"github.com/oarkflow/whitebox/pkg/objects"
	"github.com/oarkflow/whitebox/pkg/utils"
)

func factorSetupData(c *fiber.Ctx) (fiber.Map, error) {
	auth := middlewares.CurrentAuth(c)
	if auth.User == nil {
		return nil, libs.ErrNoSession
	}
	setup, err := objects.Manager.FactorSetup(c.UserContext(), auth.User)
	if err != nil {
		return nil, err
	}
	data := page(c, "Set up two-factor authentication")
	data["Setup"] = setup
	data["LogoutURI"] = utils.SignupFactorLogoutURI
	return data, nil
}

func SignupFactorPage(c *fiber.Ctx) error {
	data, err := factorSetupData(c)
	if err != nil {
		return err
	}
	return responses.Render(c, utils.FactorSetupTemplate, data)
}

func PostSignupFactor(c *fiber.Ctx) error {
	data, err := factorSetupData(c)
	if err != nil {
		return err
	}
	return verifyFactor(c, utils.FactorSetupTemplate, data, true)
}

func LoginFactorPage(c *fiber.Ctx) error {
	data := page(c, "Two-factor authentication")
	data["LogoutURI"] = utils.LoginFactorLogoutURI
	return responses.Render(c, utils.FactorVerifyTemplate, data)
}

func PostLoginFactor(c *fiber.Ctx) error {
	data := page(c, "Two-factor authentication")
	data["LogoutURI"] = utils.LoginFactorLogoutURI
	return verifyFactor(c, utils.FactorVerifyTemplate, data, false)
}

func verifyFactor(c *fiber.Ctx, template string, data fiber.Map, enrollment bool) error {
	var req requests.FactorCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return renderForm(c, template, data, libs.NewValidationError("code", "Invalid form data"))
	}
	auth := middlewares.CurrentAuth(c)
	// The session keeps its id, so the client token stays as it is.
	if _, err := objects.Manager.VerifyFactor(c.UserContext(), client(c), auth.Session, auth.User, req, enrollment); err != nil {
		retryAfterHeader(c, err)
		return renderForm(c, template, data, err)
	}
	return c.Redirect(utils.SettingsURI, fiber.StatusSeeOther)
}
