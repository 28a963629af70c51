package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/oarkflow/whitebox/pkg/http/middlewares"
	"github.com/oarkflow/whitebox/pkg/http/requests"
	"github.com/oarkflow/whitebox/pkg/http/responses"
	"github.com/oarkflow/whitebox/pkg/libs"
	"github.com/oarkflow/whitebox/pkg/objects"
	"github.com/oarkflow/whitebox/pkg/utils"
)

func settingsData(c *fiber.Ctx) (fiber.Map, error) {
	auth := middlewares.CurrentAuth(c)
	if auth.User == nil {
		return nil, libs.ErrNoSession
	}
	picture, err := objects.Manager.ProfilePicture(c.UserContext(), auth.User.ID)
	if err != nil {
		return nil, err
	}
	data := page(c, "Settings")
	data["Picture"] = picture
	data["LogoutURI"] = utils.SettingsLogoutURI
	return data, nil
}

func SettingsPage(c *fiber.Ctx) error {
	data, err := settingsData(c)
	if err != nil {
		return err
	}
	return responses.Render(c, utils.SettingsTemplate, data)
}

func PostProfilePicture(c *fiber.Ctx) error {
	data, err := settingsData(c)
	if err != nil {
		return err
	}
	var req requests.ProfilePictureRequest
	if err := c.BodyParser(&req); err != nil {
		return renderForm(c, utils.SettingsTemplate, data, libs.NewValidationError("angle", "Invalid form data"))
	}
	auth := middlewares.CurrentAuth(c)
	if err := objects.Manager.UpdateProfilePicture(c.UserContext(), auth.User, req); err != nil {
		data["Picture"] = &libs.ProfilePicture{
			Angle:    req.Angle,
			Color1:   req.Color1,
			Opacity1: req.Opacity1,
			Color2:   req.Color2,
			Opacity2: req.Opacity2,
		}
		return renderForm(c, utils.SettingsTemplate, data, err)
	}
	return flash.WithSuccess(c, fiber.Map{"message": "Profile picture updated"}).Redirect(utils.SettingsURI, fiber.StatusSeeOther)
}

// Me describes the signed in user.
func Me(c *fiber.Ctx) error {
	auth := middlewares.CurrentAuth(c)
	if auth.User == nil || auth.Session == nil {
		return middlewares.SendError(c, fiber.StatusUnauthorized, "You are not logged in")
	}
	picture, err := objects.Manager.ProfilePicture(c.UserContext(), auth.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"authenticated": auth.Authenticated(),
		"user": fiber.Map{
			"id":                      auth.User.ID,
			"username":                auth.User.Username,
			"second_factor_confirmed": auth.User.SecondFactorConfirmed,
		},
		"session": fiber.Map{
			"second_factor_passed": auth.Session.SecondFactorPassed,
			"expires_at":           auth.Session.ExpiresAt.Unix(),
		},
		"picture": picture,
	})
}
