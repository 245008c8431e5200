package sessiongate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-print"
)

// GuardAction is what a resolution cycle decided to do.
type GuardAction string

const (
	// GuardActionPending means another resolution is already running for
	// this guard; the caller keeps rendering the loading state.
	GuardActionPending GuardAction = "pending"
	// GuardActionRender grants the area; protected children may render.
	GuardActionRender GuardAction = "render"
	// GuardActionRedirectLogin sends the visitor to the login route.
	GuardActionRedirectLogin GuardAction = "redirect.login"
	// GuardActionRedirectDashboard sends an authenticated user to the
	// dashboard their role actually maps to.
	GuardActionRedirectDashboard GuardAction = "redirect.dashboard"
	// GuardActionRetry surfaces a transport fault as a retryable state.
	// The session is untouched; the credential may still be valid.
	GuardActionRetry GuardAction = "retry"
	// GuardActionDiscard means the guard unmounted while the identity
	// fetch was in flight; the late result was dropped on arrival.
	GuardActionDiscard GuardAction = "discard"
)

// GuardDecision is the outcome of one resolution cycle.
type GuardDecision struct {
	Action GuardAction
	Route  string
	User   *User
	Err    error
}

// DecideEntry is the pure entry check run before any network call: with no
// authenticated flag and no stored token there is nothing to verify, so the
// only move is the login route. Any other state proceeds to identity
// resolution, reported here as pending.
func DecideEntry(routes Routes, snap Session) GuardDecision {
	if !snap.Authenticated && snap.Token == "" {
		return GuardDecision{Action: GuardActionRedirectLogin, Route: routes.Login}
	}
	return GuardDecision{Action: GuardActionPending}
}

// DecideIdentity is the pure transition function applied to a whoAmI
// outcome. Navigation and session writes happen elsewhere; this only maps
// (area, user, error) to a decision, which keeps the redirect logic
// independently testable.
func DecideIdentity(area UserRole, routes Routes, user *User, err error) GuardDecision {
	if err != nil {
		if IsUnauthenticatedError(err) {
			return GuardDecision{Action: GuardActionRedirectLogin, Route: routes.Login, Err: err}
		}
		return GuardDecision{Action: GuardActionRetry, Err: err}
	}

	if user == nil {
		return GuardDecision{Action: GuardActionRetry, Err: ErrTransport}
	}

	if user.Role != area {
		// Unrecognized roles fall through DashboardFor to the login route.
		return GuardDecision{
			Action: GuardActionRedirectDashboard,
			Route:  routes.DashboardFor(user.Role),
			User:   user,
		}
	}

	return GuardDecision{Action: GuardActionRender, User: user}
}

// RoleGuardOption customizes guard construction.
type RoleGuardOption func(*RoleGuard)

// WithGuardRoutes overrides the route table.
func WithGuardRoutes(routes Routes) RoleGuardOption {
	return func(g *RoleGuard) {
		g.routes = routes.withDefaults()
	}
}

// WithGuardLogger overrides the guard logger.
func WithGuardLogger(logger Logger) RoleGuardOption {
	return func(g *RoleGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardActivitySink configures an ActivitySink for guard events.
func WithGuardActivitySink(sink ActivitySink) RoleGuardOption {
	return func(g *RoleGuard) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithGuardDebug enables pretty-printed identity payloads in debug logs.
func WithGuardDebug(debug bool) RoleGuardOption {
	return func(g *RoleGuard) {
		g.debug = debug
	}
}

// RoleGuard protects one role area. Exactly one resolution cycle runs per
// Resolve call; concurrent duplicates are gated so a guard cannot thrash
// between redirects. Callers render a neutral loading state until Resolve
// returns and must never render protected children earlier.
type RoleGuard struct {
	area         UserRole
	routes       Routes
	session      *SessionStore
	resolver     IdentityResolver
	navigator    Navigator
	logger       Logger
	activitySink ActivitySink
	debug        bool
	resolving    atomic.Bool
}

// NewRoleGuard returns a guard for the given role area.
func NewRoleGuard(area UserRole, session *SessionStore, resolver IdentityResolver, navigator Navigator, opts ...RoleGuardOption) *RoleGuard {
	if session == nil {
		panic("Missing SessionStore in role guard...")
	}
	if resolver == nil {
		panic("Missing IdentityResolver in role guard...")
	}
	if navigator == nil {
		panic("Missing Navigator in role guard...")
	}

	g := &RoleGuard{
		area:         area,
		routes:       DefaultRoutes(),
		session:      session,
		resolver:     resolver,
		navigator:    navigator,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Area returns the role this guard protects.
func (g *RoleGuard) Area() UserRole {
	return g.area
}

// Resolve runs one resolution cycle: rehydrate if needed, fast-path to
// login when no credentials exist (no network call), otherwise verify
// identity and apply the decision. If ctx is canceled while the identity
// fetch is in flight the result is discarded: no session write, no
// redirect.
func (g *RoleGuard) Resolve(ctx context.Context) GuardDecision {
	if !g.resolving.CompareAndSwap(false, true) {
		return GuardDecision{Action: GuardActionPending}
	}
	defer g.resolving.Store(false)

	snap := g.session.Rehydrate()

	if d := DecideEntry(g.routes, snap); d.Action == GuardActionRedirectLogin {
		g.navigator.RedirectTo(d.Route)
		g.recordGuardEvent(ctx, ActivityEventGuardDenied, nil, map[string]any{
			"reason": "no credentials",
		})
		return d
	}

	user, err := g.resolver.WhoAmI(ctx)

	if ctx.Err() != nil {
		return GuardDecision{Action: GuardActionDiscard, Err: ctx.Err()}
	}

	d := DecideIdentity(g.area, g.routes, user, err)
	g.apply(ctx, snap, d)
	return d
}

// Watch re-runs resolution whenever the session's authenticated flag
// flips, e.g. a logout in another part of the app. The returned func
// cancels the subscription; call it when the guard unmounts.
func (g *RoleGuard) Watch(ctx context.Context) func() {
	return g.session.Subscribe(func(Session) {
		if ctx.Err() != nil {
			return
		}
		g.Resolve(ctx)
	})
}

func (g *RoleGuard) apply(ctx context.Context, snap Session, d GuardDecision) {
	switch d.Action {
	case GuardActionRender:
		if err := g.session.Authenticate(d.User, ""); err != nil {
			g.logger.Error("guard session commit error: %v", err)
		}
		if g.debug {
			g.logger.Debug("guard granted area=%s user=%s", g.area, print.MaybePrettyJSON(d.User))
		}
		g.recordGuardEvent(ctx, ActivityEventGuardGranted, d.User, nil)

	case GuardActionRedirectDashboard:
		// Wrong area, valid identity: keep the session, commit the fresh
		// user record, and route them home. Not an error.
		if err := g.session.Authenticate(d.User, ""); err != nil {
			g.logger.Error("guard session commit error: %v", err)
		}
		g.navigator.RedirectTo(d.Route)
		g.recordGuardEvent(ctx, ActivityEventGuardDenied, d.User, map[string]any{
			"reason": "role mismatch",
			"route":  d.Route,
		})

	case GuardActionRedirectLogin:
		// Credentials rejected by the server: fail closed.
		if err := g.session.Clear(); err != nil {
			g.logger.Error("guard forced logout persistence error: %v", err)
		}
		g.navigator.RedirectTo(d.Route)
		g.recordGuardEvent(ctx, ActivityEventForcedLogout, nil, tokenMetadata(snap.Token))

	case GuardActionRetry:
		g.logger.Warn("guard resolution transport fault area=%s: %v", g.area, d.Err)
	}
}

func (g *RoleGuard) recordGuardEvent(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Area:       g.area,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if user != nil {
		event.UserID = user.ID.String()
	}

	sink := normalizeActivitySink(g.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		g.logger.Warn("guard activity sink error: %v", err)
	}
}
