package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// AssetKind selects the upload endpoint for a file.
type AssetKind string

const (
	AssetLogo     AssetKind = "logo"
	AssetDocument AssetKind = "document"
)

// Remote API surface. Paths are relative to the configured base URL.
const (
	endpointSignIn             = "/auth/signin"
	endpointSignUp             = "/auth/signup"
	endpointSignOut            = "/auth/signout"
	endpointUser               = "/auth/user"
	endpointOnboardingComplete = "/onboarding/complete"
	endpointOnboardingJoin     = "/onboarding/join"
	endpointUploadPrefix       = "/files/upload/"
)

// Client performs the network operations against the account API and
// reconciles server responses into the Store. It is the only writer of the
// Store; writes are last-write-wins.
type Client struct {
	baseURL string
	http    *http.Client
	store   Store
	logger  Logger

	mu      sync.RWMutex
	current *Session
}

var _ API = (*Client)(nil)

// NewClient builds a client against cfg's base URL backed by store.
func NewClient(cfg Config, store Store) *Client {
	timeout := time.Duration(cfg.GetHTTPTimeout()) * time.Second
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetBaseURL(), "/"),
		http:    &http.Client{Timeout: timeout},
		store:   store,
		logger:  defLogger{},
	}
}

func (c *Client) WithLogger(logger Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithHTTPClient swaps the underlying transport, keeping the bounded timeout
// requirement with the caller.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}

// Current returns the in-memory session snapshot, nil when anonymous.
func (c *Client) Current() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Token returns the held bearer credential, empty when anonymous.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.Token
}

// Restore loads the cached credential pair into memory without any network
// traffic. It returns the restored session, or nil when the cache is empty.
func (c *Client) Restore(ctx context.Context) (*Session, error) {
	pair, err := c.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, nil
	}

	sess := pair.Session()
	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()
	return sess, nil
}

// SignIn exchanges credentials for a session. The store is only touched on
// success.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	payload := SignInPayload{Email: email, Password: password}
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signin payload")
	}

	body, err := c.postJSON(ctx, endpointSignIn, payload, "")
	if err != nil {
		return nil, err
	}

	sess, err := normalizeAuthResponse(body, "")
	if err != nil {
		c.logger.Warn("signin response could not be normalized: %v", err)
		return nil, err
	}

	if err := c.setSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SignUp creates an account; same normalization contract as SignIn.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	payload := SignUpPayload{Email: email, Password: password, FullName: fullName}
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signup payload")
	}

	body, err := c.postJSON(ctx, endpointSignUp, payload, "")
	if err != nil {
		return nil, err
	}

	sess, err := normalizeAuthResponse(body, "")
	if err != nil {
		c.logger.Warn("signup response could not be normalized: %v", err)
		return nil, err
	}

	if err := c.setSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SignOut notifies the server best-effort and unconditionally clears local
// state. The local clear always wins; this operation never fails from the
// caller's perspective.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.Token()
	if token != "" {
		if _, err := c.postJSON(ctx, endpointSignOut, nil, token); err != nil {
			c.logger.Warn("signout notification failed: %v", err)
		}
	}

	c.clearSession(ctx)
	return nil
}

// CurrentUser revalidates the held credential against the server. An
// unauthorized response self-heals: local state is cleared and (nil, nil) is
// returned so the caller sees a plain anonymous outcome. Without a credential
// it returns (nil, nil) immediately.
func (c *Client) CurrentUser(ctx context.Context) (*Session, error) {
	token := c.Token()
	if token == "" {
		return nil, nil
	}

	body, err := c.request(ctx, http.MethodGet, endpointUser, nil, "", token)
	if err != nil {
		if Reason(err) == ReasonStaleCredential {
			c.logger.Info("credential rejected by server, clearing local session")
			c.clearSession(ctx)
			return nil, nil
		}
		return nil, err
	}

	sess, err := normalizeAuthResponse(body, token)
	if err != nil {
		c.logger.Warn("current user response could not be normalized: %v", err)
		return nil, err
	}

	if err := c.setSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// CompleteOnboarding submits the company profile and merges the returned
// company record into the current session.
func (c *Client) CompleteOnboarding(ctx context.Context, profile CompanyProfile) (*Session, error) {
	token := c.Token()
	if token == "" {
		return nil, ErrNoCredential
	}

	if err := profile.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid company profile")
	}

	body, err := c.postJSON(ctx, endpointOnboardingComplete, profile, token)
	if err != nil {
		return nil, err
	}

	sess, err := normalizeAuthResponse(body, token)
	if err != nil {
		c.logger.Warn("onboarding response could not be normalized: %v", err)
		return nil, err
	}

	if err := c.setSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// JoinCompany attaches the account to an existing company. The server applies
// the linkage by side effect and may not return the updated user inline, so
// the merged session is obtained by revalidating afterwards.
func (c *Client) JoinCompany(ctx context.Context, companyEmail string) (*Session, error) {
	token := c.Token()
	if token == "" {
		return nil, ErrNoCredential
	}

	payload := JoinCompanyPayload{CompanyEmail: companyEmail}
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid join payload")
	}

	if _, err := c.postJSON(ctx, endpointOnboardingJoin, payload, token); err != nil {
		return nil, err
	}

	sess, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidResponse
	}
	return sess, nil
}

// UploadAsset sends the file as a multipart form and returns the stored URL.
// The URL is not attached to the session; the onboarding wizard owns that.
func (c *Client) UploadAsset(ctx context.Context, file io.Reader, filename string, kind AssetKind) (string, error) {
	token := c.Token()
	if token == "" {
		return "", ErrNoCredential
	}

	if kind != AssetLogo && kind != AssetDocument {
		return "", goerrors.New(fmt.Sprintf("unknown asset kind: %s", kind), goerrors.CategoryBadInput)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build multipart body")
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to read upload content")
	}
	if err := writer.Close(); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to finalize multipart body")
	}

	body, err := c.request(ctx, http.MethodPost, endpointUploadPrefix+string(kind), &buf, writer.FormDataContentType(), token)
	if err != nil {
		return "", err
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.URL == "" {
		c.logger.Warn("upload response could not be normalized")
		return "", ErrInvalidResponse
	}

	return result.URL, nil
}

// AuthorizedRequest builds a request against the API with the bearer header
// set, for callers that need endpoints outside this client.
func (c *Client) AuthorizedRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build request")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// Do executes a request through the client's bounded-timeout transport.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, token string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to serialize request body")
		}
		body = bytes.NewReader(encoded)
	}
	return c.request(ctx, http.MethodPost, path, body, "application/json", token)
}

// request performs one round trip. Transport failures come back as network
// errors, non-2xx as server rejections (unauthorized with a held credential
// as stale-credential so callers can self-heal).
func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build request")
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, NetworkError(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, NetworkError(err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if token != "" && (res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden) {
			return nil, StaleCredential(res.StatusCode)
		}

		var envelope errorEnvelope
		_ = json.Unmarshal(raw, &envelope)
		return nil, ServerRejected(res.StatusCode, envelope.text())
	}

	return raw, nil
}

func (c *Client) setSession(ctx context.Context, sess *Session) error {
	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()

	if !sess.IsAuthenticated() {
		return nil
	}

	pair := &CachedCredential{
		User:      sess.User,
		Token:     sess.Token,
		UpdatedAt: time.Now(),
	}
	if err := c.store.Write(ctx, pair); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist session")
	}
	return nil
}

func (c *Client) clearSession(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("unable to clear session store: %v", err)
	}
}
