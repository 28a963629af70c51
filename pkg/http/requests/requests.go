package requests

import (
	"regexp"
	"unicode/utf8"
)

// FieldErrors maps a form field to the first problem found with it.
type FieldErrors map[string]string

var (
	usernamePattern = regexp.MustCompile(`^[a-z_]+$`)
	codePattern     = regexp.MustCompile(`^[0-9]{6}$`)
	colorPattern    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	upperPattern    = regexp.MustCompile(`[A-Z]`)
	lowerPattern    = regexp.MustCompile(`[a-z]`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
	specialPattern  = regexp.MustCompile(`[#?!@$%^&*,.-]`)
)

type SignRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (r *SignRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	switch n := utf8.RuneCountInString(r.Username); {
	case n < 3:
		errs["username"] = "Username must be at least 3 characters"
	case n > 31:
		errs["username"] = "Username must be at most 31 characters"
	case !usernamePattern.MatchString(r.Username):
		errs["username"] = "Only lowercase letters and underscores are allowed"
	}
	switch n := utf8.RuneCountInString(r.Password); {
	case n < 6:
		errs["password"] = "Password must be at least 6 characters"
	case n > 255:
		errs["password"] = "Password must be at most 255 characters"
	case !upperPattern.MatchString(r.Password),
		!lowerPattern.MatchString(r.Password),
		!digitPattern.MatchString(r.Password),
		!specialPattern.MatchString(r.Password):
		errs["password"] = "Password needs an uppercase letter, a lowercase letter, a digit and one of #?!@$%^&*,.-"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

type FactorCodeRequest struct {
	Code string `json:"code" form:"code"`
}

func (r *FactorCodeRequest) Validate() FieldErrors {
	if !codePattern.MatchString(r.Code) {
		return FieldErrors{"code": "Code must be exactly 6 digits"}
	}
	return nil
}

type ProfilePictureRequest struct {
	Angle    int    `json:"angle" form:"angle"`
	Color1   string `json:"color1" form:"color1"`
	Opacity1 int    `json:"opacity1" form:"opacity1"`
	Color2   string `json:"color2" form:"color2"`
	Opacity2 int    `json:"opacity2" form:"opacity2"`
}

func (r *ProfilePictureRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	if r.Angle < 0 || r.Angle > 360 {
		errs["angle"] = "Angle must be between 0 and 360"
	}
	if r.Opacity1 < 0 || r.Opacity1 > 100 {
		errs["opacity1"] = "Opacity must be between 0 and 100"
	}
	if r.Opacity2 < 0 || r.Opacity2 > 100 {
		errs["opacity2"] = "Opacity must be between 0 and 100"
	}
	if !colorPattern.MatchString(r.Color1) {
		errs["color1"] = "Color must look like #RRGGBB"
	}
	if !colorPattern.MatchString(r.Color2) {
		errs["color2"] = "Color must look like #RRGGBB"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
