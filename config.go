package sessiongate

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// GatewayConfig is the env-driven Config implementation. Values load from
// GATEWAY_* environment variables, with a .env file honored when present.
type GatewayConfig struct {
	// BaseURL is the booking backend origin.
	BaseURL string `env:"GATEWAY_BASE_URL" envDefault:"http://localhost:8080"`

	// Backend endpoint paths.
	CSRFPath   string `env:"GATEWAY_CSRF_PATH"   envDefault:"/csrf"`
	LoginPath  string `env:"GATEWAY_LOGIN_PATH"  envDefault:"/login"`
	MePath     string `env:"GATEWAY_ME_PATH"     envDefault:"/me"`
	LogoutPath string `env:"GATEWAY_LOGOUT_PATH" envDefault:"/logout"`

	// Credential attachment.
	AuthScheme     string `env:"GATEWAY_AUTH_SCHEME"      envDefault:"Bearer"`
	CSRFHeaderName string `env:"GATEWAY_CSRF_HEADER"     envDefault:"X-CSRF-Token"`
	CSRFCookieName string `env:"GATEWAY_CSRF_COOKIE"     envDefault:"XSRF-TOKEN"`

	// HTTPTimeout bounds every round trip; expiry is a transport fault,
	// never an authentication one.
	HTTPTimeout time.Duration `env:"GATEWAY_HTTP_TIMEOUT" envDefault:"10s"`

	// StoragePath overrides the session file location. Empty means the
	// user config dir default.
	StoragePath string `env:"GATEWAY_STORAGE_PATH"`

	// Client-side route table.
	LoginRoute           string `env:"GATEWAY_LOGIN_ROUTE"            envDefault:"/login"`
	ClientDashboardRoute string `env:"GATEWAY_CLIENT_DASHBOARD_ROUTE" envDefault:"/client/dashboard"`
	BarberDashboardRoute string `env:"GATEWAY_BARBER_DASHBOARD_ROUTE" envDefault:"/barber/dashboard"`
	AdminDashboardRoute  string `env:"GATEWAY_ADMIN_DASHBOARD_ROUTE"  envDefault:"/admin/dashboard"`

	Debug bool `env:"GATEWAY_DEBUG" envDefault:"false"`
}

// LoadConfig reads configuration from the environment. A .env file is
// loaded first when one exists in the working directory.
func LoadConfig() (*GatewayConfig, error) {
	godotenv.Load() //nolint:errcheck

	cfg := &GatewayConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "unable to parse gateway config")
	}

	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to configuration values. Directly constructed
// configs get the same defaults as env-loaded ones, so an empty path never
// sends a request to "/".
func (c *GatewayConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.CSRFPath == "" {
		c.CSRFPath = "/csrf"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.MePath == "" {
		c.MePath = "/me"
	}
	if c.LogoutPath == "" {
		c.LogoutPath = "/logout"
	}

	c.CSRFPath = ensureLeadingSlash(c.CSRFPath)
	c.LoginPath = ensureLeadingSlash(c.LoginPath)
	c.MePath = ensureLeadingSlash(c.MePath)
	c.LogoutPath = ensureLeadingSlash(c.LogoutPath)

	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.AuthScheme == "" {
		c.AuthScheme = DefaultAuthScheme
	}
	if c.CSRFHeaderName == "" {
		c.CSRFHeaderName = DefaultCSRFHeaderName
	}
	if c.CSRFCookieName == "" {
		c.CSRFCookieName = DefaultCSRFCookieName
	}
}

func (c *GatewayConfig) GetBaseURL() string {
	return c.BaseURL
}

func (c *GatewayConfig) GetCSRFPath() string {
	return c.CSRFPath
}

func (c *GatewayConfig) GetLoginPath() string {
	return c.LoginPath
}

func (c *GatewayConfig) GetMePath() string {
	return c.MePath
}

func (c *GatewayConfig) GetLogoutPath() string {
	return c.LogoutPath
}

func (c *GatewayConfig) GetAuthScheme() string {
	return c.AuthScheme
}

func (c *GatewayConfig) GetCSRFHeaderName() string {
	return c.CSRFHeaderName
}

func (c *GatewayConfig) GetCSRFCookieName() string {
	return c.CSRFCookieName
}

func (c *GatewayConfig) GetHTTPTimeout() time.Duration {
	return c.HTTPTimeout
}

func (c *GatewayConfig) GetStoragePath() string {
	return c.StoragePath
}

func (c *GatewayConfig) GetRoutes() Routes {
	return Routes{
		Login:           c.LoginRoute,
		ClientDashboard: c.ClientDashboardRoute,
		BarberDashboard: c.BarberDashboardRoute,
		AdminDashboard:  c.AdminDashboardRoute,
	}.withDefaults()
}

func (c *GatewayConfig) GetDebug() bool {
	return c.Debug
}

func ensureLeadingSlash(p string) string {
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
