package responses

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oarkflow/whitebox/pkg/objects"
)

// Render writes template through the shared view engine. An empty template
// sends data as JSON.
func Render(c *fiber.Ctx, template string, data any, layouts ...string) error {
	if c == nil {
		return fiber.ErrBadRequest
	}
	if template == "" {
		return c.JSON(data)
	}
	layout := "auth/" + objects.Layout
	if len(layouts) > 0 {
		layout = layouts[0]
	}
	if layout != "" {
		layouts = []string{layout}
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	if objects.ViewEngine == nil {
		return c.Render(template, data, layouts...)
	}
	return objects.ViewEngine.Render(c.Response().BodyWriter(), template, data, layouts...)
}
