// internal/handlers/utils.go
package handlers

import "strings"

// extractCookieToken extracts a named cookie value from a "Cookie" header, or returns empty
// if not found. Only whole cookie names match, so "xauth_token" never satisfies "auth_token".
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == cookieName {
			return strings.Trim(value, `"`)
		}
	}
	return ""
}
