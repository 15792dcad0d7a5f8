package middleware

import "github.com/labstack/echo/v4"

// subject returns the token subject of the request, or "anon" when the
// request is unauthenticated.
func subject(c echo.Context) string {
	if cl, ok := ClaimsFrom(c); ok && cl.Subject != "" {
		return cl.Subject
	}
	return "anon"
}
