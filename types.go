package sessiongate

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Storage is the durable key-value store backing the session. Reads always
// return the latest written value; the gateway never caches credentials in
// memory beyond request construction.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Durable storage keys. Only these two keys are in scope; the user record
// is deliberately never persisted.
const (
	StorageKeyAuthenticated = "authenticated"
	StorageKeyToken         = "token"
)

// Navigator applies a routing decision. Implementations are expected to be
// cheap and idempotent; guards may redirect to the same route twice when the
// session flag flips.
type Navigator interface {
	RedirectTo(route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route string)

func (f NavigatorFunc) RedirectTo(route string) {
	if f != nil {
		f(route)
	}
}

// IdentityResolver is the subset of the Resolver that guards depend on.
type IdentityResolver interface {
	WhoAmI(ctx context.Context) (*User, error)
}

// Config holds gateway options
type Config interface {
	GetBaseURL() string
	GetCSRFPath() string
	GetLoginPath() string
	GetMePath() string
	GetLogoutPath() string
	GetAuthScheme() string
	GetCSRFHeaderName() string
	GetCSRFCookieName() string
	GetHTTPTimeout() time.Duration
	GetStoragePath() string
	GetRoutes() Routes
	GetDebug() bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] GATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] GATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] GATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] GATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
