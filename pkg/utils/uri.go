package utils

var (
	LandingURI            = "/"
	HealthURI             = "/health"
	LoginURI              = "/login"
	SignupURI             = "/signup"
	SignupFactorURI       = "/signup/factor"
	SignupFactorLogoutURI = "/signup/factor/logout"
	LoginFactorURI        = "/login/factor"
	LoginFactorLogoutURI  = "/login/factor/logout"
	SettingsURI           = "/settings"
	SettingsPictureURI    = "/settings/picture"
	SettingsLogoutURI     = "/settings/logout"
	MeURI                 = "/api/me"
)

var (
	LandingTemplate      = "auth/index"
	LoginTemplate        = "auth/login"
	SignupTemplate       = "auth/signup"
	FactorSetupTemplate  = "auth/factor-setup"
	FactorVerifyTemplate = "auth/factor-verify"
	SettingsTemplate     = "auth/settings"
	ErrorTemplate        = "auth/error"
)

func GetURIs() map[string]string {
	return map[string]string{
		"Landing":            LandingURI,
		"Login":              LoginURI,
		"Signup":             SignupURI,
		"SignupFactor":       SignupFactorURI,
		"SignupFactorLogout": SignupFactorLogoutURI,
		"LoginFactor":        LoginFactorURI,
		"LoginFactorLogout":  LoginFactorLogoutURI,
		"Settings":           SettingsURI,
		"SettingsPicture":    SettingsPictureURI,
		"SettingsLogout":     SettingsLogoutURI,
		"Me":                 MeURI,
	}
}
