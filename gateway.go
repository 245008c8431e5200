package sessiongate

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// GatewayOption customizes gateway construction.
type GatewayOption func(*Gateway)

// WithStorage overrides the durable storage (default: FileStorage under the
// user config dir).
func WithStorage(storage Storage) GatewayOption {
	return func(g *Gateway) {
		if storage != nil {
			g.storage = storage
		}
	}
}

// WithHTTPClient overrides the HTTP client. The caller becomes responsible
// for credential attachment and the cookie jar.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithLogger sets the logger shared by the session store, resolver, and
// guards built from this gateway.
func WithLogger(logger Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithActivitySink sets the audit sink shared by all gateway components.
func WithActivitySink(sink ActivitySink) GatewayOption {
	return func(g *Gateway) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithRoutes overrides the client-side route table.
func WithRoutes(routes Routes) GatewayOption {
	return func(g *Gateway) {
		g.routes = routes.withDefaults()
	}
}

// Gateway wires the session store, resolver, and transport into one
// injectable object. There is no ambient global: everything that reads or
// writes session state receives it from here, which pins down resolution
// order and keeps the pieces testable in isolation.
type Gateway struct {
	cfg          Config
	storage      Storage
	client       *http.Client
	session      *SessionStore
	resolver     *Resolver
	routes       Routes
	logger       Logger
	activitySink ActivitySink
}

// New builds a gateway from configuration.
func New(cfg Config, opts ...GatewayOption) (*Gateway, error) {
	g := &Gateway{
		cfg:          cfg,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if g.storage == nil {
		storage, err := NewFileStorage(cfg.GetStoragePath())
		if err != nil {
			return nil, err
		}
		g.storage = storage
	}

	if g.client == nil {
		client, err := NewHTTPClient(g.storage, cfg)
		if err != nil {
			return nil, err
		}
		g.client = client
	}

	if g.routes == (Routes{}) {
		g.routes = cfg.GetRoutes()
	}

	g.session = NewSessionStore(g.storage,
		WithSessionLogger(g.logger),
		WithSessionActivitySink(g.activitySink),
	)

	g.resolver = NewResolver(g.client, g.storage, cfg,
		WithResolverLogger(g.logger),
		WithResolverActivitySink(g.activitySink),
	)

	return g, nil
}

// Session returns the session store.
func (g *Gateway) Session() *SessionStore {
	return g.session
}

// Resolver returns the identity resolver.
func (g *Gateway) Resolver() *Resolver {
	return g.resolver
}

// Client returns the HTTP client carrying the credential attacher. Business
// calls to the backend should go through it so every request is credentialed.
func (g *Gateway) Client() *http.Client {
	return g.client
}

// Routes returns the client-side route table.
func (g *Gateway) Routes() Routes {
	return g.routes
}

// Rehydrate initializes the session from durable storage at startup.
func (g *Gateway) Rehydrate() Session {
	return g.session.Rehydrate()
}

// Login runs the full login flow and commits the session on success.
// Rejections come back in the LoginResult for field-level display; the
// session and durable storage are untouched for those.
func (g *Gateway) Login(ctx context.Context, payload LoginRequest) (*LoginResult, error) {
	g.session.Rehydrate()

	result, err := g.resolver.Login(ctx, payload)
	if err != nil {
		return nil, err
	}

	if !result.OK() {
		return result, nil
	}

	if err := g.session.Authenticate(result.User, result.Token); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to commit session after login")
	}

	return result, nil
}

// Logout tells the server best-effort and always clears the local session.
func (g *Gateway) Logout(ctx context.Context) error {
	if err := g.resolver.Logout(ctx); err != nil {
		g.logger.Warn("server-side logout failed, clearing local session anyway: %v", err)
	}

	err := g.session.Clear()

	sink := normalizeActivitySink(g.activitySink)
	if sinkErr := sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventLogout,
		OccurredAt: time.Now(),
	}); sinkErr != nil {
		g.logger.Warn("logout activity sink error: %v", sinkErr)
	}

	return err
}

// Guard builds a role guard for an area, sharing this gateway's session,
// resolver, routes, logger, and sink.
func (g *Gateway) Guard(area UserRole, navigator Navigator, opts ...RoleGuardOption) *RoleGuard {
	base := []RoleGuardOption{
		WithGuardRoutes(g.routes),
		WithGuardLogger(g.logger),
		WithGuardActivitySink(g.activitySink),
		WithGuardDebug(g.cfg.GetDebug()),
	}
	return NewRoleGuard(area, g.session, g.resolver, navigator, append(base, opts...)...)
}
