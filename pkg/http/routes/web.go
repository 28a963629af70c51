package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oarkflow/whitebox/pkg/http/handlers"
	"github.com/oarkflow/whitebox/pkg/http/middlewares"
	"github.com/oarkflow/whitebox/pkg/utils"
)

// Setup registers every page. Health is answered before the gate.
func Setup(router fiber.Router) {
	router.Get(utils.HealthURI, handlers.HealthCheck)
	router.Use(middlewares.Gate)

	router.Get(utils.LandingURI, handlers.LandingPage)
	router.Get(utils.LoginURI, handlers.LoginPage)
	router.Post(utils.LoginURI, handlers.PostLogin)
	router.Get(utils.SignupURI, handlers.SignupPage)
	router.Post(utils.SignupURI, handlers.PostSignup)

	router.Get(utils.SignupFactorURI, handlers.SignupFactorPage)
	router.Post(utils.SignupFactorURI, handlers.PostSignupFactor)
	router.Get(utils.LoginFactorURI, handlers.LoginFactorPage)
	router.Post(utils.LoginFactorURI, handlers.PostLoginFactor)

	ProtectedRoutes(router)

	for _, uri := range []string{utils.SignupFactorLogoutURI, utils.LoginFactorLogoutURI, utils.SettingsLogoutURI} {
		router.Post(uri, handlers.Logout)
	}
}

func ProtectedRoutes(route fiber.Router) {
	route.Get(utils.SettingsURI, handlers.SettingsPage)
	route.Post(utils.SettingsPictureURI, handlers.PostProfilePicture)
	route.Get(utils.MeURI, handlers.Me)
}
