package session

import (
	"context"
	"fmt"
	"io"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Store persists the cached credential pair between runs. Implementations
// carry pure key-value semantics: no network access, no validation beyond a
// structural parse. A corrupt record reads as absent, not as an error.
type Store interface {
	Read(ctx context.Context) (*CachedCredential, error)
	Write(ctx context.Context, pair *CachedCredential) error
	Clear(ctx context.Context) error
}

// API is the surface the Manager drives. *Client is the canonical
// implementation; tests substitute fakes.
type API interface {
	Restore(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (*Session, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (*Session, error)
	CompleteOnboarding(ctx context.Context, profile CompanyProfile) (*Session, error)
	JoinCompany(ctx context.Context, companyEmail string) (*Session, error)
	UploadAsset(ctx context.Context, file io.Reader, filename string, kind AssetKind) (string, error)
}

// Uploader is the slice of API the onboarding wizard needs for assets.
type Uploader interface {
	UploadAsset(ctx context.Context, file io.Reader, filename string, kind AssetKind) (string, error)
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetHTTPTimeout() int
	GetLoginRoute() string
	GetOnboardingRoute() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
