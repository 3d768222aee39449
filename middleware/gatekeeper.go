// Package middleware holds the edge-layer request filters. The
// gatekeeper runs before application logic and is deliberately blind to
// cookie contents: its execution environment has no access to the
// provider's verification call, so it routes on presence alone and deep
// verification happens later in the session manager.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Decision is the gatekeeper's routing verdict.
type Decision int

const (
	Allow Decision = iota
	RedirectDashboard
	RedirectLogin
)

// GatekeeperConfig names the page sets the presence check routes on.
type GatekeeperConfig struct {
	// AuthPages are entry pages a signed-in user has no business on.
	AuthPages []string
	// ProtectedPrefix guards the signed-in area.
	ProtectedPrefix string
	// DashboardPath and LoginPath are the redirect targets.
	DashboardPath string
	LoginPath     string
	// CookieName is only checked for presence, never read.
	CookieName string
}

// DefaultGatekeeperConfig returns the standard page layout.
func DefaultGatekeeperConfig(cookieName string) GatekeeperConfig {
	return GatekeeperConfig{
		AuthPages:       []string{"/login", "/signup"},
		ProtectedPrefix: "/dashboard",
		DashboardPath:   "/dashboard",
		LoginPath:       "/login",
		CookieName:      cookieName,
	}
}

// Decide is the pure routing function: (path, cookie presence) in,
// verdict out.
func (c GatekeeperConfig) Decide(path string, hasCookie bool) Decision {
	if hasCookie && (path == "/" || c.isAuthPage(path)) {
		return RedirectDashboard
	}
	if !hasCookie && strings.HasPrefix(path, c.ProtectedPrefix) {
		return RedirectLogin
	}
	return Allow
}

func (c GatekeeperConfig) isAuthPage(path string) bool {
	for _, p := range c.AuthPages {
		if path == p {
			return true
		}
	}
	return false
}

// Gatekeeper returns echo middleware applying the presence-only routing
// rules.
func Gatekeeper(cfg GatekeeperConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hasCookie := false
			if ck, err := c.Cookie(cfg.CookieName); err == nil && ck.Value != "" {
				hasCookie = true
			}

			switch cfg.Decide(c.Request().URL.Path, hasCookie) {
			case RedirectDashboard:
				return c.Redirect(http.StatusSeeOther, cfg.DashboardPath)
			case RedirectLogin:
				return c.Redirect(http.StatusSeeOther, cfg.LoginPath)
			default:
				return next(c)
			}
		}
	}
}
