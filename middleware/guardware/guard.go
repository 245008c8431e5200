// Package guardware mounts a role guard as go-router middleware for
// server-rendered shells. Redirect semantics match the in-process
// RoleGuard: no credentials means login, a role mismatch means the role's
// own dashboard, rejected credentials clear the session, and transport
// faults surface through the error handler without touching the session.
package guardware

import (
	"net/http"

	sessiongate "github.com/barberly/go-sessiongate"
	"github.com/goliatone/go-router"
)

// DefaultContextKey is where the resolved user is stored for handlers.
const DefaultContextKey = "current_user"

type Config struct {
	// Filter defines a function to skip middleware
	Filter func(router.Context) bool

	// Area is the role this route subtree requires.
	Area sessiongate.UserRole

	// Session is the shared session store. Required.
	Session *sessiongate.SessionStore

	// Resolver fetches the current identity. Required.
	Resolver sessiongate.IdentityResolver

	// Routes is the redirect table. Defaults to sessiongate.DefaultRoutes.
	Routes sessiongate.Routes

	// ContextKey defines the key for storing the user in context
	ContextKey string

	// SuccessHandler runs after the area is granted. Defaults to Next.
	SuccessHandler router.HandlerFunc

	// ErrorHandler receives transport faults and session commit failures.
	ErrorHandler router.ErrorHandler
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			snap := cfg.Session.Rehydrate()

			// No flag, no token: nothing to verify, no network call.
			if d := sessiongate.DecideEntry(cfg.Routes, snap); d.Action == sessiongate.GuardActionRedirectLogin {
				return ctx.Redirect(d.Route, http.StatusFound)
			}

			user, err := cfg.Resolver.WhoAmI(ctx.Context())
			d := sessiongate.DecideIdentity(cfg.Area, cfg.Routes, user, err)

			switch d.Action {
			case sessiongate.GuardActionRender:
				if err := cfg.Session.Authenticate(d.User, ""); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
				ctx.Locals(cfg.ContextKey, d.User)
				return cfg.SuccessHandler(ctx)

			case sessiongate.GuardActionRedirectDashboard:
				if err := cfg.Session.Authenticate(d.User, ""); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
				return ctx.Redirect(d.Route, http.StatusSeeOther)

			case sessiongate.GuardActionRedirectLogin:
				if err := cfg.Session.Clear(); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
				return ctx.Redirect(d.Route, http.StatusFound)

			default:
				return cfg.ErrorHandler(ctx, d.Err)
			}
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Session == nil {
		panic("GUARD: middleware configuration: Session is required.")
	}

	if cfg.Resolver == nil {
		panic("GUARD: middleware configuration: Resolver is required.")
	}

	if cfg.Routes == (sessiongate.Routes{}) {
		cfg.Routes = sessiongate.DefaultRoutes()
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.Status(http.StatusServiceUnavailable).SendString("Service temporarily unavailable")
		}
	}

	return cfg
}
