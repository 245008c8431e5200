package sessiongate_test

import (
	"errors"
	"testing"
	"time"

	sessiongate "github.com/barberly/go-sessiongate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_Rehydrate_EmptyStorage(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	store := sessiongate.NewSessionStore(storage)

	require.Equal(t, sessiongate.StateUnknown, store.State())

	snap := store.Rehydrate()

	assert.Equal(t, sessiongate.StateUnauthenticated, snap.State)
	assert.False(t, snap.Authenticated)
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.User)
}

func TestSessionStore_Rehydrate_PersistedCredentials(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	require.NoError(t, storage.Set(sessiongate.StorageKeyAuthenticated, "true"))
	require.NoError(t, storage.Set(sessiongate.StorageKeyToken, "persisted-token"))

	store := sessiongate.NewSessionStore(storage)
	snap := store.Rehydrate()

	assert.Equal(t, sessiongate.StateAuthenticated, snap.State)
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "persisted-token", snap.Token)
	// Optimistic: identity is unknown until the next guard resolution.
	assert.Nil(t, snap.User)
}

func TestSessionStore_Rehydrate_FlagWithoutToken(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	require.NoError(t, storage.Set(sessiongate.StorageKeyAuthenticated, "true"))

	store := sessiongate.NewSessionStore(storage)
	snap := store.Rehydrate()

	assert.Equal(t, sessiongate.StateUnauthenticated, snap.State)
	assert.Empty(t, snap.Token)
}

func TestSessionStore_Rehydrate_TokenWithoutFlag(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	require.NoError(t, storage.Set(sessiongate.StorageKeyToken, "stored-token"))

	store := sessiongate.NewSessionStore(storage)
	snap := store.Rehydrate()

	// Not authenticated, but the token is carried so a guard verifies it
	// instead of short-circuiting to login.
	assert.Equal(t, sessiongate.StateUnauthenticated, snap.State)
	assert.Equal(t, "stored-token", snap.Token)
	assert.Equal(t, sessiongate.GuardActionPending,
		sessiongate.DecideEntry(sessiongate.DefaultRoutes(), snap).Action)
}

func TestSessionStore_Rehydrate_IsIdempotent(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	store := sessiongate.NewSessionStore(storage)

	first := store.Rehydrate()

	// Writing to storage after the first rehydrate must not change anything.
	require.NoError(t, storage.Set(sessiongate.StorageKeyAuthenticated, "true"))
	require.NoError(t, storage.Set(sessiongate.StorageKeyToken, "late-token"))

	second := store.Rehydrate()
	assert.Equal(t, first.State, second.State)
	assert.Empty(t, second.Token)
}

func TestSessionStore_Rehydrate_EmitsActivity(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	sink := &recordingSink{}
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := sessiongate.NewSessionStore(storage,
		sessiongate.WithSessionActivitySink(sink),
		sessiongate.WithSessionClock(func() time.Time { return fixed }),
	)

	store.Rehydrate()

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, sessiongate.ActivityEventSessionRehydrated, events[0].EventType)
	assert.Equal(t, sessiongate.StateUnknown, events[0].FromState)
	assert.Equal(t, sessiongate.StateUnauthenticated, events[0].ToState)
	assert.Equal(t, fixed, events[0].OccurredAt)
}

func TestSessionStore_Authenticate_RequiresRehydration(t *testing.T) {
	store := sessiongate.NewSessionStore(sessiongate.NewMemoryStorage())

	err := store.Authenticate(&sessiongate.User{ID: uuid.New(), Role: sessiongate.RoleClient}, "tok")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, sessiongate.TextCodeInvalidTransition, richErr.TextCode)
	assert.Equal(t, sessiongate.StateUnknown, store.State())
}

func TestSessionStore_Authenticate_PersistsBeforeCommit(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	store := sessiongate.NewSessionStore(storage)
	store.Rehydrate()

	user := &sessiongate.User{ID: uuid.New(), Name: "Pat", Role: sessiongate.RoleBarber}
	require.NoError(t, store.Authenticate(user, "fresh-token"))

	snap := store.Snapshot()
	assert.Equal(t, sessiongate.StateAuthenticated, snap.State)
	assert.Equal(t, "fresh-token", snap.Token)
	require.NotNil(t, snap.User)
	assert.Equal(t, user.ID, snap.User.ID)

	assert.True(t, sessiongate.ReadAuthenticated(storage))
	assert.Equal(t, "fresh-token", sessiongate.ReadToken(storage))
}

func TestSessionStore_Authenticate_EmptyTokenKeepsCurrent(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	store := sessiongate.NewSessionStore(storage)
	store.Rehydrate()

	user := &sessiongate.User{ID: uuid.New(), Role: sessiongate.RoleClient}
	require.NoError(t, store.Authenticate(user, "original"))

	// A whoAmI refresh commits the user without re-issuing credentials.
	require.NoError(t, store.Authenticate(user, ""))

	assert.Equal(t, "original", store.Snapshot().Token)
	assert.Equal(t, "original", sessiongate.ReadToken(storage))
}

func TestSessionStore_Clear_WipesMemoryAndStorage(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	store := sessiongate.NewSessionStore(storage)
	store.Rehydrate()

	require.NoError(t, store.Authenticate(&sessiongate.User{ID: uuid.New(), Role: sessiongate.RoleAdmin}, "tok"))
	require.NoError(t, store.Clear())

	snap := store.Snapshot()
	assert.Equal(t, sessiongate.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)

	assert.False(t, sessiongate.ReadAuthenticated(storage))
	assert.Empty(t, sessiongate.ReadToken(storage))
}

type failingStorage struct {
	*sessiongate.MemoryStorage
}

func (s *failingStorage) Set(key, value string) error {
	return errors.New("disk full")
}

func TestSessionStore_Clear_LogsPersistenceFailureReadably(t *testing.T) {
	storage := &failingStorage{MemoryStorage: sessiongate.NewMemoryStorage()}
	logger := &captureLogger{}
	store := sessiongate.NewSessionStore(storage, sessiongate.WithSessionLogger(logger))
	store.Rehydrate()

	require.Error(t, store.Clear())

	lines := logger.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "session clear persistence error")
	assert.Contains(t, lines[0], "disk full")
	// A format/arg mismatch would leave fmt's EXTRA marker in the line.
	assert.NotContains(t, lines[0], "%!")
}

func TestSessionStore_Subscribe_NotifiesOnFlagFlipOnly(t *testing.T) {
	storage := sessiongate.NewMemoryStorage()
	store := sessiongate.NewSessionStore(storage)
	store.Rehydrate()

	var got []sessiongate.Session
	cancel := store.Subscribe(func(snap sessiongate.Session) {
		got = append(got, snap)
	})

	user := &sessiongate.User{ID: uuid.New(), Role: sessiongate.RoleClient}
	require.NoError(t, store.Authenticate(user, "tok"))
	require.Len(t, got, 1)
	assert.True(t, got[0].Authenticated)

	// User refresh while already authenticated: no notification.
	require.NoError(t, store.Authenticate(user, ""))
	require.Len(t, got, 1)

	require.NoError(t, store.Clear())
	require.Len(t, got, 2)
	assert.False(t, got[1].Authenticated)

	// Clearing an already unauthenticated session: no notification.
	require.NoError(t, store.Clear())
	require.Len(t, got, 2)

	cancel()
	store.Rehydrate()
	require.NoError(t, store.Authenticate(user, "tok"))
	assert.Len(t, got, 2)
}

func TestSessionStore_Snapshot_ReturnsUserCopy(t *testing.T) {
	store := sessiongate.NewSessionStore(sessiongate.NewMemoryStorage())
	store.Rehydrate()

	require.NoError(t, store.Authenticate(&sessiongate.User{ID: uuid.New(), Name: "Pat", Role: sessiongate.RoleBarber}, "tok"))

	first := store.Snapshot()
	first.User.Name = "mutated"

	second := store.Snapshot()
	assert.Equal(t, "Pat", second.User.Name)
}
