package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported lifecycle event categories.
type ActivityEventType string

const (
	ActivityEventStateChanged        ActivityEventType = "session.state.changed"
	ActivityEventLoginSuccess        ActivityEventType = "session.login.success"
	ActivityEventLoginFailure        ActivityEventType = "session.login.failure"
	ActivityEventSignupSuccess       ActivityEventType = "session.signup.success"
	ActivityEventSignupFailure       ActivityEventType = "session.signup.failure"
	ActivityEventLogout              ActivityEventType = "session.logout"
	ActivityEventRefresh             ActivityEventType = "session.refresh"
	ActivityEventOnboardingCompleted ActivityEventType = "session.onboarding.completed"
	ActivityEventCompanyJoined       ActivityEventType = "session.company.joined"
)

// ActivityEvent captures audit-friendly information about a lifecycle action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	FromState  State
	ToState    State
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes lifecycle events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never propagated.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
