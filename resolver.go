package sessiongate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"
)

// LoginRequest is the credentials payload
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Secret,
			validation.Required,
		),
	)
}

// LoginResult is the discriminated outcome of a login attempt. Rejected
// credentials and malformed-but-parseable responses are results, not
// errors; only transport faults propagate as errors.
type LoginResult struct {
	Token string
	// User is the optional payload some backends include with the token.
	// Guards never trust it; role truth comes from WhoAmI.
	User *User
	// Reason is non-empty when the attempt was rejected.
	Reason string
	// Fields holds field-level validation messages for form display.
	Fields map[string]string
}

// OK reports whether the login succeeded.
func (r *LoginResult) OK() bool {
	return r != nil && r.Reason == ""
}

type loginResponseData struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user,omitempty"`
	Message     string `json:"message,omitempty"`
}

type loginEnvelope struct {
	Data loginResponseData `json:"data"`
}

type meEnvelope struct {
	Data *User `json:"data"`
}

// ResolverOption customizes resolver construction.
type ResolverOption func(*Resolver)

// WithResolverLogger overrides the resolver logger.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverActivitySink configures an ActivitySink for login events.
func WithResolverActivitySink(sink ActivitySink) ResolverOption {
	return func(r *Resolver) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// Resolver performs the authentication handshake against the booking
// backend: CSRF priming, login, identity fetch, and best-effort logout.
// It never writes session state; callers map results onto the SessionStore.
type Resolver struct {
	client       *http.Client
	storage      Storage
	baseURL      string
	csrfPath     string
	loginPath    string
	mePath       string
	logoutPath   string
	logger       Logger
	activitySink ActivitySink
	group        singleflight.Group
}

// NewResolver returns a Resolver using the provided client. The client is
// expected to carry the CredentialAttacher and a cookie jar; see
// NewHTTPClient.
func NewResolver(client *http.Client, storage Storage, cfg Config, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:       client,
		storage:      storage,
		baseURL:      cfg.GetBaseURL(),
		csrfPath:     cfg.GetCSRFPath(),
		loginPath:    cfg.GetLoginPath(),
		mePath:       cfg.GetMePath(),
		logoutPath:   cfg.GetLogoutPath(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// PrimeCSRF fetches the CSRF bootstrap endpoint so the server can set the
// double-submit cookie in the client jar. The cookie side effect is visible
// as soon as this returns. A missing cookie afterwards is a soft condition:
// login proceeds and the attacher simply omits the echo header.
func (r *Resolver) PrimeCSRF(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+r.csrfPath, nil)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build csrf request")
	}

	res, err := r.client.Do(req)
	if err != nil {
		return wrapTransport(err, "csrf priming failed")
	}
	defer drain(res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return ErrTransport.WithMetadata(map[string]any{
			"status": res.StatusCode,
			"path":   r.csrfPath,
		})
	}
	return nil
}

// Login primes CSRF and submits credentials. Expected rejections (bad
// credentials, validation errors, structurally incomplete success bodies)
// come back inside the LoginResult; only transport faults return an error.
func (r *Resolver) Login(ctx context.Context, payload LoginRequest) (*LoginResult, error) {
	if err := payload.Validate(); err != nil {
		r.emitLoginEvent(ctx, ActivityEventLoginFailure, payload.Identifier, map[string]any{
			"error": err.Error(),
		})
		return &LoginResult{
			Reason: "validation failed",
			Fields: formatValidationErrors(err),
		}, nil
	}

	// Must happen-before login so the attacher can echo the cookie.
	if err := r.PrimeCSRF(ctx); err != nil {
		r.logger.Warn("csrf priming failed, attempting login without echo: %v", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode login payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+r.loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build login request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, wrapTransport(err, "login request failed")
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, wrapTransport(err, "unable to read login response")
	}

	if res.StatusCode >= 500 {
		return nil, ErrTransport.WithMetadata(map[string]any{
			"status": res.StatusCode,
			"path":   r.loginPath,
		})
	}

	var envelope loginEnvelope
	decodeErr := json.Unmarshal(data, &envelope)

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if decodeErr != nil {
			return nil, wrapTransport(decodeErr, "malformed login response")
		}

		// A success-shaped body without the token is a rejection, not a
		// crash: partial server responses must not take down the UI.
		if envelope.Data.AccessToken == "" {
			r.emitLoginEvent(ctx, ActivityEventLoginFailure, payload.Identifier, map[string]any{
				"error": "login response missing access_token",
			})
			return &LoginResult{Reason: rejectionReason(envelope, "unexpected login response shape")}, nil
		}

		r.emitLoginEvent(ctx, ActivityEventLoginSuccess, payload.Identifier, nil)
		return &LoginResult{
			Token: envelope.Data.AccessToken,
			User:  envelope.Data.User,
		}, nil
	}

	reason := "invalid credentials"
	if decodeErr == nil {
		reason = rejectionReason(envelope, reason)
	}

	r.emitLoginEvent(ctx, ActivityEventLoginFailure, payload.Identifier, map[string]any{
		"status": res.StatusCode,
		"error":  reason,
	})
	return &LoginResult{Reason: reason}, nil
}

// WhoAmI fetches the current identity with the stored credentials. A 401
// means the credential is no longer valid and comes back as an
// Unauthenticated error (the forced-logout trigger); anything network-level
// comes back as a transport fault, which must not log the user out.
// Concurrent calls from independently mounted guards are collapsed into a
// single request.
func (r *Resolver) WhoAmI(ctx context.Context) (*User, error) {
	v, err, _ := r.group.Do("whoami", func() (any, error) {
		return r.fetchIdentity(ctx)
	})
	if err != nil {
		return nil, err
	}

	user, ok := v.(*User)
	if !ok || user == nil {
		return nil, ErrTransport.WithMetadata(map[string]any{
			"reason": "identity fetch produced no user",
		})
	}

	// Each caller gets its own copy; guards mutate nothing shared.
	u := *user
	return &u, nil
}

func (r *Resolver) fetchIdentity(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+r.mePath, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build identity request")
	}
	req.Header.Set("Accept", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, wrapTransport(err, "identity fetch failed")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthenticated.WithMetadata(tokenMetadata(ReadToken(r.storage)))
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, ErrTransport.WithMetadata(map[string]any{
			"status": res.StatusCode,
			"path":   r.mePath,
		})
	}

	var envelope meEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, wrapTransport(err, "malformed identity response")
	}

	if envelope.Data == nil {
		return nil, ErrTransport.WithMetadata(map[string]any{
			"reason": "identity response missing data",
			"path":   r.mePath,
		})
	}

	return envelope.Data, nil
}

// Logout asks the server to invalidate the session. Best effort: callers
// proceed with the local logout whatever happens here.
func (r *Resolver) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+r.logoutPath, nil)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build logout request")
	}

	res, err := r.client.Do(req)
	if err != nil {
		return wrapTransport(err, "logout request failed")
	}
	defer drain(res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return ErrTransport.WithMetadata(map[string]any{
			"status": res.StatusCode,
			"path":   r.logoutPath,
		})
	}
	return nil
}

func (r *Resolver) emitLoginEvent(ctx context.Context, eventType ActivityEventType, identifier string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["identifier"] = identifier

	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	sink := normalizeActivitySink(r.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		r.logger.Warn("activity sink record error: %v", err)
	}
}

func rejectionReason(envelope loginEnvelope, fallback string) string {
	if envelope.Data.Message != "" {
		return envelope.Data.Message
	}
	return fallback
}

func formatValidationErrors(err error) map[string]string {
	out := map[string]string{}
	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			if fieldErr != nil {
				out[field] = fieldErr.Error()
			}
		}
		return out
	}
	if err != nil {
		out["form"] = err.Error()
	}
	return out
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, body) //nolint:errcheck
	body.Close()
}
