package sessiongate

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SessionState is the lifecycle state of the client session.
type SessionState string

const (
	// StateUnknown is the initial state, before rehydration from storage.
	StateUnknown SessionState = "unknown"
	// StateUnauthenticated means no usable credentials are held.
	StateUnauthenticated SessionState = "unauthenticated"
	// StateAuthenticated means credentials are held; they are optimistic
	// until the next guard resolution verifies them with the server.
	StateAuthenticated SessionState = "authenticated"
)

// Session is a point-in-time snapshot of the store.
type Session struct {
	User          *User
	Authenticated bool
	Token         string
	State         SessionState
}

// SessionStoreOption customizes session store construction.
type SessionStoreOption func(*SessionStore)

// WithSessionLogger overrides the logger used for storage and sink failures.
func WithSessionLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionActivitySink sets the ActivitySink used to publish lifecycle events.
func WithSessionActivitySink(sink ActivitySink) SessionStoreOption {
	return func(s *SessionStore) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// SessionStore owns the session state machine. It is the single writer of
// durable storage; every transition persists the authenticated flag and
// token before the in-memory state is committed.
type SessionStore struct {
	mu           sync.Mutex
	state        SessionState
	user         *User
	token        string
	storage      Storage
	transitions  map[SessionState]map[SessionState]struct{}
	subscribers  map[int]func(Session)
	nextSub      int
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewSessionStore returns a store in the Unknown state backed by the
// provided durable storage.
func NewSessionStore(storage Storage, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		state:   StateUnknown,
		storage: storage,
		transitions: map[SessionState]map[SessionState]struct{}{
			StateUnknown: {
				StateUnauthenticated: {},
				StateAuthenticated:   {},
			},
			StateUnauthenticated: {
				StateAuthenticated: {},
			},
			StateAuthenticated: {
				StateUnauthenticated: {},
			},
		},
		subscribers:  map[int]func(Session){},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Snapshot returns the current session values.
func (s *SessionStore) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state.
func (s *SessionStore) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Rehydrate initializes the session from durable storage. It is optimistic:
// a persisted flag plus token lands in Authenticated without consulting the
// server; the first guard resolution re-verifies. Calling it after the
// initial transition is a no-op returning the current snapshot.
func (s *SessionStore) Rehydrate() Session {
	s.mu.Lock()

	if s.state != StateUnknown {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	from := s.state
	token := ReadToken(s.storage)
	authenticated := ReadAuthenticated(s.storage)

	// The token is carried even without the flag: guards only short-circuit
	// to login when no token exists at all, otherwise they verify it.
	s.token = token
	if authenticated && token != "" {
		s.state = StateAuthenticated
	} else {
		s.state = StateUnauthenticated
	}

	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.recordActivity(ActivityEvent{
		EventType: ActivityEventSessionRehydrated,
		FromState: from,
		ToState:   snap.State,
	})

	return snap
}

// Authenticate commits a verified identity. An empty token keeps the token
// already held, which is how whoAmI refreshes commit without re-issuing
// credentials. Persists before committing in memory; a persistence failure
// leaves the state unchanged.
func (s *SessionStore) Authenticate(user *User, token string) error {
	s.mu.Lock()

	from := s.state
	if from == StateUnknown {
		s.mu.Unlock()
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   from,
			"to":     StateAuthenticated,
			"reason": "session not rehydrated",
		})
	}
	if err := s.canTransition(from, StateAuthenticated); err != nil {
		s.mu.Unlock()
		return err
	}

	if token == "" {
		token = s.token
	}

	if err := s.persist(true, token); err != nil {
		s.mu.Unlock()
		return err
	}

	s.state = StateAuthenticated
	s.user = user
	s.token = token
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if from != StateAuthenticated {
		s.notify(snap)
	}
	return nil
}

// Clear transitions to Unauthenticated and wipes durable credentials. The
// in-memory state is cleared even when storage writes fail: an ambiguous
// logout must still deny access locally.
func (s *SessionStore) Clear() error {
	s.mu.Lock()

	from := s.state
	persistErr := s.persist(false, "")

	s.state = StateUnauthenticated
	s.user = nil
	s.token = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if persistErr != nil {
		s.logger.Error("session clear persistence error: %v", persistErr)
	}

	if from != StateUnauthenticated {
		s.notify(snap)
	}
	return persistErr
}

// Subscribe registers a callback invoked after the authenticated flag
// flips. User-only refreshes do not notify, so a subscribed guard re-runs
// at most once per flag change. The returned func cancels the subscription.
func (s *SessionStore) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) snapshotLocked() Session {
	var user *User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return Session{
		User:          user,
		Authenticated: s.state == StateAuthenticated,
		Token:         s.token,
		State:         s.state,
	}
}

func (s *SessionStore) canTransition(from, to SessionState) error {
	if from == to {
		return nil
	}
	if allowed, ok := s.transitions[from]; ok {
		if _, exists := allowed[to]; exists {
			return nil
		}
	}
	return ErrInvalidTransition.WithMetadata(map[string]any{
		"from": from,
		"to":   to,
	})
}

func (s *SessionStore) persist(authenticated bool, token string) error {
	if s.storage == nil {
		return nil
	}

	flag := "false"
	if authenticated {
		flag = "true"
	}

	if err := s.storage.Set(StorageKeyAuthenticated, flag); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist authenticated flag")
	}

	if token == "" {
		if err := s.storage.Delete(StorageKeyToken); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to clear persisted token")
		}
		return nil
	}

	if err := s.storage.Set(StorageKeyToken, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist token")
	}
	return nil
}

func (s *SessionStore) notify(snap Session) {
	s.mu.Lock()
	fns := make([]func(Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *SessionStore) recordActivity(event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	sink := normalizeActivitySink(s.activitySink)
	if err := sink.Record(context.Background(), event); err != nil {
		s.logger.Warn("session store activity sink error: %v", err)
	}
}
