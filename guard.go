package session

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Decision is the route guard outcome for a navigation attempt.
type Decision int

const (
	// DecisionPending: resolution is in flight; show a loading placeholder,
	// never redirect prematurely.
	DecisionPending Decision = iota
	// DecisionRender: the view may be shown.
	DecisionRender
	// DecisionRedirectLogin: no session; send the visitor to sign-in.
	DecisionRedirectLogin
	// DecisionRedirectOnboarding: authenticated but the route requires a
	// completed company profile.
	DecisionRedirectOnboarding
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionRender:
		return "render"
	case DecisionRedirectLogin:
		return "redirect-login"
	case DecisionRedirectOnboarding:
		return "redirect-onboarding"
	}
	return "unknown"
}

// Decide maps the published state and the target route's onboarding
// requirement onto a guard decision. Pure function; re-evaluate it on every
// state change, not only on initial navigation, so an expiring session gets
// caught while a protected view is already showing.
func Decide(state State, requireOnboarding bool) Decision {
	switch state {
	case StateUnresolved:
		return DecisionPending
	case StateAnonymous:
		return DecisionRedirectLogin
	case StateAuthenticatedIncomplete:
		if requireOnboarding {
			return DecisionRedirectOnboarding
		}
		return DecisionRender
	case StateAuthenticatedComplete:
		return DecisionRender
	}
	return DecisionRedirectLogin
}

// RouteGuard adapts Decide to go-router handlers: it consults the Manager on
// every request, redirects to the configured login/onboarding paths, and
// remembers the rejected route so sign-in can send the visitor back.
type RouteGuard struct {
	manager *Manager
	cfg     Config
	Logger  Logger
	// PendingHandler renders the loading placeholder while the startup
	// reconciliation is still in flight.
	PendingHandler func(c router.Context) error
}

func NewRouteGuard(manager *Manager, cfg Config) *RouteGuard {
	g := &RouteGuard{
		manager: manager,
		cfg:     cfg,
		Logger:  defLogger{},
	}
	g.PendingHandler = g.defaultPendingHandler
	return g
}

// Manager exposes the guarded manager to downstream handlers.
func (g *RouteGuard) Manager() *Manager {
	return g.manager
}

// Protected returns middleware for routes that demand a session; pass
// requireOnboarding to additionally demand a completed company profile.
func (g *RouteGuard) Protected(requireOnboarding bool) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			decision := Decide(g.manager.State(), requireOnboarding)

			switch decision {
			case DecisionRender:
				return next(c)
			case DecisionPending:
				return g.PendingHandler(c)
			case DecisionRedirectOnboarding:
				g.Logger.Info("redirecting %s to onboarding", c.OriginalURL())
				return g.redirect(c, g.cfg.GetOnboardingRoute())
			default:
				g.Logger.Info("redirecting %s to login", c.OriginalURL())
				g.Logger.Debug("guard decision: %s", print.MaybePrettyJSON(map[string]any{
					"decision": decision.String(),
					"state":    string(g.manager.State()),
					"path":     c.OriginalURL(),
				}))
				g.SetRedirect(c)
				return g.redirect(c, g.cfg.GetLoginRoute())
			}
		}
	}
}

// SetRedirect remembers the rejected route in a short-lived cookie.
func (g *RouteGuard) SetRedirect(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     g.cfg.GetRejectedRouteKey(),
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirectOrDefault pops the remembered route, falling back to the
// configured default.
func (g *RouteGuard) GetRedirectOrDefault(c router.Context) string {
	key := g.cfg.GetRejectedRouteKey()
	r := c.Cookies(key)
	if r == "" {
		r = g.cfg.GetRejectedRouteDefault()
	}
	g.cookieDel(c, key)
	return r
}

func (g *RouteGuard) redirect(c router.Context, target string) error {
	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(target, statusCode)
}

func (g *RouteGuard) defaultPendingHandler(c router.Context) error {
	return c.Status(http.StatusOK).Render("loading", router.ViewContext{
		"state": string(StateUnresolved),
	})
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GuardError normalizes guard failures into a rich error for callers that
// surface them as HTTP responses.
func GuardError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "unexpected authentication error").
			WithCode(goerrors.CodeUnauthorized)
	}
	return richErr
}
