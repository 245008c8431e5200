package sessiongate_test

import (
	"context"
	"fmt"
	"sync"

	sessiongate "github.com/barberly/go-sessiongate"
	"github.com/stretchr/testify/mock"
)

// MockIdentityResolver is a mock implementation of the IdentityResolver interface
type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) WhoAmI(ctx context.Context) (*sessiongate.User, error) {
	args := m.Called(ctx)

	var user *sessiongate.User
	if u := args.Get(0); u != nil {
		user = u.(*sessiongate.User)
	}
	return user, args.Error(1)
}

// recordingNavigator captures redirect targets in order.
type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) RedirectTo(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.routes))
	copy(out, n.routes)
	return out
}

// captureLogger renders log lines the way printf-style loggers do, so tests
// can assert on the final output.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.logf(format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.logf(format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.logf(format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.logf(format, args...) }

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// recordingSink collects activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []sessiongate.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event sessiongate.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []sessiongate.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sessiongate.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) Types() []sessiongate.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sessiongate.ActivityEventType, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.EventType)
	}
	return out
}
