package session_test

import (
	"context"
	"io"
	"sync"

	"github.com/goliatone/go-session"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

var _ router.Context = (*MockContext)(nil)

// fakeAPI scripts client behavior for manager tests. Channels make in-flight
// operations observable so races can be staged deterministically.
type fakeAPI struct {
	mu sync.Mutex

	restored   *session.Session
	restoreErr error

	signInSession *session.Session
	signInErr     error
	signInStarted chan struct{}
	signInRelease chan struct{}

	signUpSession *session.Session
	signUpErr     error

	current    *session.Session
	currentErr error

	onboarded    *session.Session
	onboardedErr error

	joined    *session.Session
	joinedErr error

	signOutCalls int
}

var _ session.API = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{}
}

func (f *fakeAPI) Restore(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restored, f.restoreErr
}

func (f *fakeAPI) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if f.signInStarted != nil {
		close(f.signInStarted)
		f.signInStarted = nil
	}
	if f.signInRelease != nil {
		<-f.signInRelease
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInSession, f.signInErr
}

func (f *fakeAPI) SignUp(ctx context.Context, email, password, fullName string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signUpSession, f.signUpErr
}

func (f *fakeAPI) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return nil
}

func (f *fakeAPI) CurrentUser(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.currentErr
}

func (f *fakeAPI) CompleteOnboarding(ctx context.Context, profile session.CompanyProfile) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onboarded, f.onboardedErr
}

func (f *fakeAPI) JoinCompany(ctx context.Context, companyEmail string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined, f.joinedErr
}

func (f *fakeAPI) UploadAsset(ctx context.Context, file io.Reader, filename string, kind session.AssetKind) (string, error) {
	return "https://assets.example.com/" + string(kind) + "/" + filename, nil
}

func (f *fakeAPI) signOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

func authenticatedSession(id string, withCompany bool) *session.Session {
	user := &session.User{
		ID:       id,
		Email:    id + "@example.com",
		FullName: "Test User",
	}
	if withCompany {
		user.Company = &session.Company{
			ID:          "co-" + id,
			CompanyName: "Test Co",
		}
	}
	return &session.Session{User: user, Token: "tok-" + id}
}

// recorder collects published states in order.
type recorder struct {
	mu     sync.Mutex
	states []session.State
}

func (r *recorder) subscriber(state session.State, _ *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) seen() []session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.State, len(r.states))
	copy(out, r.states)
	return out
}
