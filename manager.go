package session

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// State is the resolved auth state the rest of the application consumes.
type State string

const (
	// StateUnresolved: startup reconciliation has not finished; consumers
	// should hold rather than redirect.
	StateUnresolved State = "unresolved"
	// StateAnonymous: no credential is held.
	StateAnonymous State = "anonymous"
	// StateAuthenticatedIncomplete: credential held, no company attached.
	StateAuthenticatedIncomplete State = "authenticated-incomplete"
	// StateAuthenticatedComplete: credential held and onboarding done.
	StateAuthenticatedComplete State = "authenticated-complete"
)

// ErrInvalidStateTransition is returned when a requested state change is not
// in the transition table and was not forced by an authoritative server
// response.
var ErrInvalidStateTransition = goerrors.New("invalid session state transition", goerrors.CategoryConflict).
	WithTextCode("INVALID_SESSION_STATE_TRANSITION").
	WithCode(goerrors.CodeConflict)

// Subscriber receives every published state change.
type Subscriber func(state State, sess *Session)

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithManagerLogger overrides the logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerActivitySink sets the sink receiving lifecycle events.
func WithManagerActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// Manager owns the resolved session state for one application instance.
// Construct it once at startup and inject it into consumers; it replaces the
// hidden process-wide singleton with an explicit, observable object.
//
// Concurrency contract: single-writer. Every mutating operation snapshots a
// generation counter before its network call and commits only if the counter
// is unchanged when the response arrives. Logout bumps the counter, so a
// stale login response can never re-establish a session after an explicit
// logout.
type Manager struct {
	api         API
	logger      Logger
	sink        ActivitySink
	now         func() time.Time
	transitions map[State]map[State]struct{}

	mu          sync.Mutex
	state       State
	session     *Session
	generation  uint64
	startOnce   sync.Once
	subscribers map[int]Subscriber
	nextSubID   int
}

// NewManager returns an unresolved Manager driving the given API.
func NewManager(api API, opts ...ManagerOption) *Manager {
	m := &Manager{
		api:    api,
		logger: defLogger{},
		sink:   noopActivitySink{},
		now:    time.Now,
		state:  StateUnresolved,
		transitions: map[State]map[State]struct{}{
			StateUnresolved: {
				StateAnonymous:               {},
				StateAuthenticatedIncomplete: {},
				StateAuthenticatedComplete:   {},
			},
			StateAnonymous: {
				StateAuthenticatedIncomplete: {},
				StateAuthenticatedComplete:   {},
			},
			StateAuthenticatedIncomplete: {
				StateAuthenticatedComplete: {},
				StateAnonymous:             {},
			},
			StateAuthenticatedComplete: {
				// server data may disagree with an optimistic cache
				StateAuthenticatedIncomplete: {},
				StateAnonymous:               {},
			},
		},
		subscribers: map[int]Subscriber{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// State returns the currently published state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the currently published session, nil when anonymous or
// unresolved.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Subscribe registers fn for every state change and returns an unsubscribe
// function. The route guard and views subscribe instead of re-deriving state
// ad hoc.
func (m *Manager) Subscribe(fn Subscriber) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Start performs the startup reconciliation exactly once: read the cached
// pair, optimistically publish it to avoid a flash of the logged-out view,
// then revalidate against the server. The server answer is authoritative; a
// transport failure keeps the optimistic state, since CurrentUser already
// self-heals when the credential itself is rejected.
func (m *Manager) Start(ctx context.Context) State {
	m.startOnce.Do(func() {
		m.resolve(ctx)
	})
	return m.State()
}

func (m *Manager) resolve(ctx context.Context) {
	gen := m.currentGeneration()

	cached, err := m.api.Restore(ctx)
	if err != nil {
		m.logger.Warn("session cache read failed: %v", err)
	}

	optimistic := StateAnonymous
	if cached.IsAuthenticated() {
		optimistic = stateFor(cached)
		m.commit(ctx, gen, optimistic, cached, ActivityEventStateChanged, nil)
	}

	sess, err := m.api.CurrentUser(ctx)
	if err != nil {
		// background revalidation fails silently into the cached state
		m.logger.Warn("startup revalidation failed, keeping cached state: %v", err)
		if !cached.IsAuthenticated() {
			m.commit(ctx, gen, StateAnonymous, nil, ActivityEventStateChanged, nil)
		}
		return
	}

	if sess == nil {
		m.commit(ctx, gen, StateAnonymous, nil, ActivityEventStateChanged, nil)
		return
	}

	m.commit(ctx, gen, stateFor(sess), sess, ActivityEventRefresh, nil)
}

// Login signs the user in and publishes the resulting state.
func (m *Manager) Login(ctx context.Context, email, password string) (State, error) {
	gen := m.currentGeneration()

	sess, err := m.api.SignIn(ctx, email, password)
	if err != nil {
		m.record(ctx, ActivityEventLoginFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return m.State(), err
	}

	m.commit(ctx, gen, stateFor(sess), sess, ActivityEventLoginSuccess, map[string]any{
		"email": email,
	})
	return m.State(), nil
}

// Signup creates an account and publishes the resulting state.
func (m *Manager) Signup(ctx context.Context, email, password, fullName string) (State, error) {
	gen := m.currentGeneration()

	sess, err := m.api.SignUp(ctx, email, password, fullName)
	if err != nil {
		m.record(ctx, ActivityEventSignupFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return m.State(), err
	}

	m.commit(ctx, gen, stateFor(sess), sess, ActivityEventSignupSuccess, map[string]any{
		"email": email,
	})
	return m.State(), nil
}

// Logout always lands on Anonymous regardless of the network outcome, and
// supersedes any still-pending operation: their responses will be discarded.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	userID := ""
	if m.session != nil && m.session.User != nil {
		userID = m.session.User.ID
	}
	m.mu.Unlock()

	if err := m.api.SignOut(ctx); err != nil {
		// contractually unreachable, the client swallows signout failures
		m.logger.Warn("signout returned an error: %v", err)
	}

	m.commit(ctx, gen, StateAnonymous, nil, ActivityEventLogout, map[string]any{
		"user_id": userID,
	})
}

// Refresh revalidates against the server and republishes. Transport failures
// keep the current state.
func (m *Manager) Refresh(ctx context.Context) (State, error) {
	gen := m.currentGeneration()

	sess, err := m.api.CurrentUser(ctx)
	if err != nil {
		m.logger.Warn("refresh failed, keeping current state: %v", err)
		return m.State(), err
	}

	if sess == nil {
		m.commit(ctx, gen, StateAnonymous, nil, ActivityEventRefresh, nil)
		return m.State(), nil
	}

	m.commit(ctx, gen, stateFor(sess), sess, ActivityEventRefresh, nil)
	return m.State(), nil
}

// CompleteOnboarding submits the company profile and publishes the merged
// session.
func (m *Manager) CompleteOnboarding(ctx context.Context, profile CompanyProfile) (State, error) {
	gen := m.currentGeneration()

	sess, err := m.api.CompleteOnboarding(ctx, profile)
	if err != nil {
		return m.State(), err
	}

	m.commit(ctx, gen, stateFor(sess), sess, ActivityEventOnboardingCompleted, map[string]any{
		"company_name": profile.CompanyName,
	})
	return m.State(), nil
}

// JoinCompany attaches the account to an existing company and publishes the
// merged session.
func (m *Manager) JoinCompany(ctx context.Context, companyEmail string) (State, error) {
	gen := m.currentGeneration()

	sess, err := m.api.JoinCompany(ctx, companyEmail)
	if err != nil {
		return m.State(), err
	}

	m.commit(ctx, gen, stateFor(sess), sess, ActivityEventCompanyJoined, map[string]any{
		"company_email": companyEmail,
	})
	return m.State(), nil
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// commit publishes (state, session) if gen is still current. A stale commit
// carrying a live session re-clears local state so the logout that superseded
// it keeps winning.
func (m *Manager) commit(ctx context.Context, gen uint64, to State, sess *Session, event ActivityEventType, metadata map[string]any) {
	m.mu.Lock()

	if m.generation != gen {
		m.mu.Unlock()
		m.logger.Info("discarding stale %s response", event)
		if sess.IsAuthenticated() {
			if err := m.api.SignOut(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("unable to clear superseded session: %v", err)
			}
		}
		return
	}

	from := m.state
	if from != to {
		if err := m.canTransition(from, to); err != nil {
			m.logger.Warn("unexpected state transition %s -> %s", from, to)
		}
	}

	m.state = to
	m.session = sess
	subs := make([]Subscriber, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(to, sess)
	}

	userID := ""
	if sess != nil && sess.User != nil {
		userID = sess.User.ID
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["from"] = string(from)
	metadata["to"] = string(to)

	m.emit(ctx, ActivityEvent{
		EventType: event,
		UserID:    userID,
		FromState: from,
		ToState:   to,
		Metadata:  metadata,
	})
}

func (m *Manager) canTransition(from, to State) error {
	if allowed, ok := m.transitions[from]; ok {
		if _, exists := allowed[to]; exists {
			return nil
		}
	}
	return ErrInvalidStateTransition.WithMetadata(map[string]any{
		"from": from,
		"to":   to,
	})
}

func (m *Manager) record(ctx context.Context, event ActivityEventType, userID string, metadata map[string]any) {
	m.emit(ctx, ActivityEvent{
		EventType: event,
		UserID:    userID,
		Metadata:  metadata,
	})
}

func (m *Manager) emit(ctx context.Context, event ActivityEvent) {
	event.OccurredAt = m.now()
	if err := normalizeActivitySink(m.sink).Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}

// stateFor maps a session onto the published state. Company presence is the
// single onboarding signal.
func stateFor(sess *Session) State {
	if !sess.IsAuthenticated() {
		return StateAnonymous
	}
	if sess.User.HasCompany() {
		return StateAuthenticatedComplete
	}
	return StateAuthenticatedIncomplete
}
