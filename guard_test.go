package session_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name              string
		state             session.State
		requireOnboarding bool
		expected          session.Decision
	}{
		{
			name:     "unresolved holds",
			state:    session.StateUnresolved,
			expected: session.DecisionPending,
		},
		{
			name:              "unresolved holds even for onboarded routes",
			state:             session.StateUnresolved,
			requireOnboarding: true,
			expected:          session.DecisionPending,
		},
		{
			name:     "anonymous goes to login",
			state:    session.StateAnonymous,
			expected: session.DecisionRedirectLogin,
		},
		{
			name:              "anonymous goes to login before onboarding",
			state:             session.StateAnonymous,
			requireOnboarding: true,
			expected:          session.DecisionRedirectLogin,
		},
		{
			name:     "incomplete renders plain routes",
			state:    session.StateAuthenticatedIncomplete,
			expected: session.DecisionRender,
		},
		{
			name:              "incomplete goes to onboarding",
			state:             session.StateAuthenticatedIncomplete,
			requireOnboarding: true,
			expected:          session.DecisionRedirectOnboarding,
		},
		{
			name:     "complete renders",
			state:    session.StateAuthenticatedComplete,
			expected: session.DecisionRender,
		},
		{
			name:              "complete renders onboarded routes",
			state:             session.StateAuthenticatedComplete,
			requireOnboarding: true,
			expected:          session.DecisionRender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, session.Decide(tt.state, tt.requireOnboarding))
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "pending", session.DecisionPending.String())
	assert.Equal(t, "render", session.DecisionRender.String())
	assert.Equal(t, "redirect-login", session.DecisionRedirectLogin.String())
	assert.Equal(t, "redirect-onboarding", session.DecisionRedirectOnboarding.String())
	assert.Equal(t, "unknown", session.Decision(42).String())
}

func resolvedGuard(t *testing.T, api *fakeAPI) *session.RouteGuard {
	t.Helper()
	manager := session.NewManager(api)
	manager.Start(context.Background())
	return session.NewRouteGuard(manager, &session.BaseConfig{})
}

func nextHandler(called *bool) router.HandlerFunc {
	return func(c router.Context) error {
		*called = true
		return nil
	}
}

func TestProtectedRendersForAuthenticatedUser(t *testing.T) {
	api := newFakeAPI()
	api.current = authenticatedSession("u1", true)
	guard := resolvedGuard(t, api)

	ctx := &MockContext{}

	called := false
	err := guard.Protected(true)(nextHandler(&called))(ctx)

	require.NoError(t, err)
	assert.True(t, called)
}

func TestProtectedRedirectsAnonymousToLogin(t *testing.T) {
	guard := resolvedGuard(t, newFakeAPI())

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/dashboard")
	ctx.On("Method").Return("GET")
	ctx.On("Cookie", mock.AnythingOfType("*router.Cookie")).Return()
	ctx.On("Redirect", "/login", []int{302}).Return(nil)

	called := false
	err := guard.Protected(false)(nextHandler(&called))(ctx)

	require.NoError(t, err)
	assert.False(t, called)
	ctx.AssertCalled(t, "Redirect", "/login", []int{302})

	// the rejected route is remembered for after sign-in
	for _, call := range ctx.Calls {
		if call.Method == "Cookie" {
			cookie := call.Arguments.Get(0).(*router.Cookie)
			assert.Equal(t, "rejected_route", cookie.Name)
			assert.Equal(t, "/dashboard", cookie.Value)
		}
	}
}

func TestProtectedRedirectsIncompleteToOnboarding(t *testing.T) {
	api := newFakeAPI()
	api.current = authenticatedSession("u1", false)
	guard := resolvedGuard(t, api)

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/dashboard")
	ctx.On("Method").Return("POST")
	ctx.On("Redirect", "/onboarding", []int{303}).Return(nil)

	called := false
	err := guard.Protected(true)(nextHandler(&called))(ctx)

	require.NoError(t, err)
	assert.False(t, called)
	ctx.AssertCalled(t, "Redirect", "/onboarding", []int{303})
}

func TestProtectedRendersPendingPlaceholderWhileUnresolved(t *testing.T) {
	manager := session.NewManager(newFakeAPI())
	guard := session.NewRouteGuard(manager, &session.BaseConfig{})

	ctx := &MockContext{}
	ctx.On("Status", 200).Return()
	ctx.On("Render", "loading", mock.Anything).Return(nil)

	called := false
	err := guard.Protected(false)(nextHandler(&called))(ctx)

	require.NoError(t, err)
	assert.False(t, called)
	ctx.AssertCalled(t, "Render", "loading", mock.Anything)
}

func TestProtectedReEvaluatesOnStateChange(t *testing.T) {
	api := newFakeAPI()
	api.signInSession = authenticatedSession("u1", true)
	manager := session.NewManager(api)
	manager.Start(context.Background())
	guard := session.NewRouteGuard(manager, &session.BaseConfig{})

	middleware := guard.Protected(false)

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/dashboard")
	ctx.On("Method").Return("GET")
	ctx.On("Cookie", mock.Anything).Return()
	ctx.On("Redirect", "/login", []int{302}).Return(nil)

	called := false
	require.NoError(t, middleware(nextHandler(&called))(ctx))
	assert.False(t, called)

	manager.Login(context.Background(), "u1@example.com", "secret1")

	// same middleware instance now lets the request through
	require.NoError(t, middleware(nextHandler(&called))(ctx))
	assert.True(t, called)
}

type spyLogger struct {
	lines []string
}

func (l *spyLogger) Debug(format string, args ...any) { l.log(format, args...) }
func (l *spyLogger) Info(format string, args ...any)  { l.log(format, args...) }
func (l *spyLogger) Warn(format string, args ...any)  { l.log(format, args...) }
func (l *spyLogger) Error(format string, args ...any) { l.log(format, args...) }

func (l *spyLogger) log(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestProtectedLogsRenderCleanly(t *testing.T) {
	guard := resolvedGuard(t, newFakeAPI())
	logger := &spyLogger{}
	guard.Logger = logger

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/dashboard")
	ctx.On("Method").Return("GET")
	ctx.On("Cookie", mock.Anything).Return()
	ctx.On("Redirect", "/login", []int{302}).Return(nil)

	called := false
	require.NoError(t, guard.Protected(false)(nextHandler(&called))(ctx))

	require.NotEmpty(t, logger.lines)
	joined := strings.Join(logger.lines, "\n")
	assert.Contains(t, joined, "/dashboard")
	assert.NotContains(t, joined, "%!(")
}

func TestGetRedirectOrDefault(t *testing.T) {
	guard := resolvedGuard(t, newFakeAPI())

	ctx := &MockContext{}
	ctx.On("Cookies", "rejected_route").Return("/reports/42")
	ctx.On("Cookie", mock.Anything).Return()

	assert.Equal(t, "/reports/42", guard.GetRedirectOrDefault(ctx))

	empty := &MockContext{}
	empty.On("Cookies", "rejected_route").Return("")
	empty.On("Cookie", mock.Anything).Return()

	assert.Equal(t, "/", guard.GetRedirectOrDefault(empty))
}

func TestGuardError(t *testing.T) {
	rich := session.GuardError(session.ServerRejected(401, "nope"))
	require.NotNil(t, rich)
	assert.Equal(t, "SERVER_REJECTED", rich.TextCode)

	wrapped := session.GuardError(errors.New("boom"))
	require.NotNil(t, wrapped)
	assert.Equal(t, goerrors.CategoryAuth, wrapped.Category)
	assert.Equal(t, goerrors.CodeUnauthorized, wrapped.Code)
}
