package sessiongate_test

import (
	"context"
	"testing"
	"time"

	sessiongate "github.com/barberly/go-sessiongate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, baseURL string, storage sessiongate.Storage, opts ...sessiongate.GatewayOption) *sessiongate.Gateway {
	t.Helper()

	cfg := &sessiongate.GatewayConfig{
		BaseURL:     baseURL,
		HTTPTimeout: 5 * time.Second,
	}
	cfg.Sanitize()

	opts = append([]sessiongate.GatewayOption{sessiongate.WithStorage(storage)}, opts...)

	gateway, err := sessiongate.New(cfg, opts...)
	require.NoError(t, err)
	return gateway
}

func TestGateway_LoginCommitsSession(t *testing.T) {
	backend := newFakeBackend(t)
	storage := sessiongate.NewMemoryStorage()
	gateway := newTestGateway(t, backend.srv.URL, storage)

	result, err := gateway.Login(context.Background(), sessiongate.LoginRequest{
		Identifier: "pat@example.com",
		Secret:     "let-me-in",
	})
	require.NoError(t, err)
	require.True(t, result.OK())

	snap := gateway.Session().Snapshot()
	assert.Equal(t, sessiongate.StateAuthenticated, snap.State)
	assert.Equal(t, backend.token, snap.Token)

	assert.True(t, sessiongate.ReadAuthenticated(storage))
	assert.Equal(t, backend.token, sessiongate.ReadToken(storage))
}

func TestGateway_RejectedLoginLeavesSessionAlone(t *testing.T) {
	backend := newFakeBackend(t)
	storage := sessiongate.NewMemoryStorage()
	gateway := newTestGateway(t, backend.srv.URL, storage)

	result, err := gateway.Login(context.Background(), sessiongate.LoginRequest{
		Identifier: "pat@example.com",
		Secret:     "wrong",
	})
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, "invalid credentials", result.Reason)

	assert.Equal(t, sessiongate.StateUnauthenticated, gateway.Session().State())
	assert.False(t, sessiongate.ReadAuthenticated(storage))
	assert.Empty(t, sessiongate.ReadToken(storage))
}

func TestGateway_SessionResumesAcrossInstances(t *testing.T) {
	backend := newFakeBackend(t)
	storage := sessiongate.NewMemoryStorage()

	first := newTestGateway(t, backend.srv.URL, storage)
	result, err := first.Login(context.Background(), sessiongate.LoginRequest{
		Identifier: "pat@example.com",
		Secret:     "let-me-in",
	})
	require.NoError(t, err)
	require.True(t, result.OK())

	// A fresh gateway on the same storage models an app restart.
	second := newTestGateway(t, backend.srv.URL, storage)
	snap := second.Rehydrate()

	assert.Equal(t, sessiongate.StateAuthenticated, snap.State)
	assert.Equal(t, backend.token, snap.Token)
	// Identity stays unknown until a guard verifies it.
	assert.Nil(t, snap.User)
}

func TestGateway_LogoutClearsEverything(t *testing.T) {
	backend := newFakeBackend(t)
	storage := sessiongate.NewMemoryStorage()
	sink := &recordingSink{}
	gateway := newTestGateway(t, backend.srv.URL, storage, sessiongate.WithActivitySink(sink))

	_, err := gateway.Login(context.Background(), sessiongate.LoginRequest{
		Identifier: "pat@example.com",
		Secret:     "let-me-in",
	})
	require.NoError(t, err)

	require.NoError(t, gateway.Logout(context.Background()))

	assert.Equal(t, sessiongate.StateUnauthenticated, gateway.Session().State())
	assert.False(t, sessiongate.ReadAuthenticated(storage))
	assert.Empty(t, sessiongate.ReadToken(storage))
	assert.Contains(t, sink.Types(), sessiongate.ActivityEventLogout)
}

func TestGateway_LogoutClearsLocallyWhenServerUnreachable(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	require.NoError(t, storage.Set(sessiongate.StorageKeyAuthenticated, "true"))
	require.NoError(t, storage.Set(sessiongate.StorageKeyToken, "abc"))

	gateway := newTestGateway(t, "http://127.0.0.1:1", storage)
	gateway.Rehydrate()

	require.NoError(t, gateway.Logout(context.Background()))

	assert.Equal(t, sessiongate.StateUnauthenticated, gateway.Session().State())
	assert.False(t, sessiongate.ReadAuthenticated(storage))
}

func TestGateway_GuardEndToEnd(t *testing.T) {
	backend := newFakeBackend(t)
	storage := sessiongate.NewMemoryStorage()
	gateway := newTestGateway(t, backend.srv.URL, storage)

	_, err := gateway.Login(context.Background(), sessiongate.LoginRequest{
		Identifier: "pat@example.com",
		Secret:     "let-me-in",
	})
	require.NoError(t, err)

	nav := &recordingNavigator{}

	// The issued user is a barber: the admin guard routes them home, the
	// barber guard renders.
	admin := gateway.Guard(sessiongate.RoleAdmin, nav)
	assert.Equal(t, sessiongate.GuardActionRedirectDashboard, admin.Resolve(context.Background()).Action)
	assert.Equal(t, []string{"/barber/dashboard"}, nav.Routes())

	barber := gateway.Guard(sessiongate.RoleBarber, nav)
	d := barber.Resolve(context.Background())
	assert.Equal(t, sessiongate.GuardActionRender, d.Action)
	require.NotNil(t, d.User)
	assert.Equal(t, backend.userID, d.User.ID)
}
