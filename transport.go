package sessiongate

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/net/publicsuffix"
)

const (
	// HeaderAuthorization carries the bearer token.
	HeaderAuthorization = "Authorization"
	// DefaultAuthScheme is the Authorization header scheme.
	DefaultAuthScheme = "Bearer"
	// DefaultCSRFHeaderName is the header echoing the double-submit cookie.
	DefaultCSRFHeaderName = "X-CSRF-Token"
	// DefaultCSRFCookieName is the cookie the backend sets on /csrf.
	DefaultCSRFCookieName = "XSRF-TOKEN"
)

// CredentialAttacher injects credentials into every outbound request: the
// bearer token from durable storage and the URL-decoded CSRF cookie value.
// Both are read fresh at request time so a logout/login swap is picked up
// immediately. Absent credentials mean omitted headers, never a failed
// request. It deliberately has no access to the SessionStore.
type CredentialAttacher struct {
	// Base is the next RoundTripper. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// Storage is read for the bearer token on every request.
	Storage Storage
	// Jar is consulted for the CSRF cookie matching the request URL.
	Jar http.CookieJar

	AuthScheme     string
	CSRFHeaderName string
	CSRFCookieName string
}

func (a *CredentialAttacher) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request.
	out := req.Clone(req.Context())

	if token := ReadToken(a.Storage); token != "" {
		out.Header.Set(HeaderAuthorization, a.authScheme()+" "+token)
	}

	if raw := a.csrfCookie(req.URL); raw != "" {
		value, err := url.QueryUnescape(raw)
		if err != nil {
			value = raw
		}
		out.Header.Set(a.csrfHeaderName(), value)
	}

	return a.base().RoundTrip(out)
}

func (a *CredentialAttacher) base() http.RoundTripper {
	if a.Base != nil {
		return a.Base
	}
	return http.DefaultTransport
}

func (a *CredentialAttacher) authScheme() string {
	if a.AuthScheme != "" {
		return a.AuthScheme
	}
	return DefaultAuthScheme
}

func (a *CredentialAttacher) csrfHeaderName() string {
	if a.CSRFHeaderName != "" {
		return a.CSRFHeaderName
	}
	return DefaultCSRFHeaderName
}

func (a *CredentialAttacher) csrfCookie(u *url.URL) string {
	if a.Jar == nil || u == nil {
		return ""
	}

	name := a.CSRFCookieName
	if name == "" {
		name = DefaultCSRFCookieName
	}

	for _, c := range a.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// NewHTTPClient builds the gateway's HTTP client: a public-suffix aware
// cookie jar (so the CSRF cookie set by priming survives), the credential
// attacher as transport, and the configured network timeout.
func NewHTTPClient(storage Storage, cfg Config) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create cookie jar")
	}

	attacher := &CredentialAttacher{
		Storage:        storage,
		Jar:            jar,
		AuthScheme:     cfg.GetAuthScheme(),
		CSRFHeaderName: cfg.GetCSRFHeaderName(),
		CSRFCookieName: cfg.GetCSRFCookieName(),
	}

	return &http.Client{
		Jar:       jar,
		Transport: attacher,
		Timeout:   cfg.GetHTTPTimeout(),
	}, nil
}
