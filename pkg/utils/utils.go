package utils

import (
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
)

// GetCookie builds the session cookie. A negative maxAge expires it.
func GetCookie(secure bool, key, val string, maxAge time.Duration) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     key,
		Value:    val,
		Path:     "/",
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if maxAge < 0 || val == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		return cookie
	}
	cookie.MaxAge = int(maxAge.Seconds())
	cookie.Expires = time.Now().Add(maxAge)
	return cookie
}

// GetClientIP returns the caller address as fiber resolved it. Proxy headers
// are honoured only when the app was configured with a ProxyHeader.
func GetClientIP(c *fiber.Ctx) string {
	ip := c.IP()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
