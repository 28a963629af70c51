package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sujit-baniya/flash"

	"github.com/oarkflow/whitebox/pkg/http/middlewares"
	"github.com/oarkflow/whitebox/pkg/http/responses"
	"github.com/oarkflow/whitebox/pkg/libs"
	"github.com/oarkflow/whitebox/pkg/models"
	"github.com/oarkflow/whitebox/pkg/objects"
	"github.com/oarkflow/whitebox/pkg/utils"
)

func client(c *fiber.Ctx) libs.Client {
	return libs.Client{
		IP:        utils.GetClientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

func setSessionCookie(c *fiber.Ctx, s *models.Session) error {
	token, err := objects.Manager.Sessions.Token(s)
	if err != nil {
		return err
	}
	cfg := objects.Manager.Config
	c.Cookie(utils.GetCookie(cfg.SecureCookies(), cfg.SessionName, token, objects.Manager.Sessions.Lifetime()))
	return nil
}

func clearSessionCookie(c *fiber.Ctx) {
	cfg := objects.Manager.Config
	c.Cookie(utils.GetCookie(cfg.SecureCookies(), cfg.SessionName, objects.Manager.Sessions.BlankToken(), -1))
}

// formFailure maps an action error to the messages and status of a form
// re-render. ok is false when err has to go to the error handler instead.
func formFailure(err error) (fields map[string]string, status int, ok bool) {
	var (
		validation *libs.ValidationError
		limited    *libs.RateLimitedError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Fields, fiber.StatusBadRequest, true
	case errors.As(err, &limited):
		return map[string]string{limited.Field: limited.Error()}, fiber.StatusTooManyRequests, true
	}
	field, msg, ok := libs.FieldMessage(err)
	if !ok {
		return nil, 0, false
	}
	return map[string]string{field: msg}, fiber.StatusBadRequest, true
}

// renderForm renders template with the page data, previous input and the
// messages from err. Errors that are not form errors are returned as is.
func renderForm(c *fiber.Ctx, template string, data fiber.Map, err error) error {
	fields, status, ok := formFailure(err)
	if !ok {
		return err
	}
	data["Errors"] = fields
	c.Status(status)
	return responses.Render(c, template, data)
}

func page(c *fiber.Ctx, title string) fiber.Map {
	auth := middlewares.CurrentAuth(c)
	data := fiber.Map{
		"Title":  title,
		"Flash":  flash.Get(c),
		"Errors": map[string]string{},
	}
	if auth.User != nil {
		data["Username"] = auth.User.Username
	}
	return data
}

func renderErrorPage(c *fiber.Ctx, statusCode int, title, message, description, technical, retryURL string) error {
	data := models.ErrorPageData{
		Title:       title,
		StatusCode:  statusCode,
		Message:     message,
		Description: description,
		Technical:   technical,
		RetryURL:    retryURL,
		ErrorID:     "ERR-" + uuid.NewString(),
	}
	c.Status(statusCode)
	return responses.Render(c, utils.ErrorTemplate, data)
}

// ErrorHandler renders failures that escaped a handler. State transition
// failures and store errors end up here as 500s.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	title := "Something went wrong"
	message := "The request could not be completed."
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		title = http.StatusText(code)
		message = fe.Message
	}
	var transition *libs.StateTransitionError
	if errors.As(err, &transition) {
		message = "Your session could not be updated. Please try again."
	}
	if code >= fiber.StatusInternalServerError && objects.Manager != nil {
		objects.Manager.Audit.LogError(libs.EventRequestFailed, err)
	}
	technical := ""
	if objects.Manager != nil && objects.Manager.Config.Env == "development" {
		technical = err.Error()
	}
	if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return c.Status(code).JSON(fiber.Map{"success": false, "error": message, "status": code})
	}
	return renderErrorPage(c, code, title, message, "", technical, utils.LandingURI)
}

func retryAfterHeader(c *fiber.Ctx, err error) {
	var limited *libs.RateLimitedError
	if errors.As(err, &limited) {
		c.Set(fiber.HeaderRetryAfter, formatSeconds(limited.RetryAfter))
	}
}

func formatSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
