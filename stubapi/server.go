// Package stubapi is a conformant in-memory implementation of the account
// API consumed by go-session. It backs the integration tests and doubles as a
// local development server. It reproduces the deployed backend's observed
// quirk of nesting the signin user payload one level deep.
package stubapi

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// Account is a registered user plus its password hash.
type Account struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	FullName  string         `json:"full_name"`
	Role      string         `json:"role,omitempty"`
	CompanyID string         `json:"company_id,omitempty"`
	Company   map[string]any `json:"company,omitempty"`
	CreatedAt time.Time      `json:"created_at"`

	passwordHash string
}

// Options tune server behavior for tests.
type Options struct {
	// SigningKey signs bearer tokens. A static default keeps tests
	// deterministic.
	SigningKey []byte
	// TokenTTL bounds issued tokens.
	TokenTTL time.Duration
	// NestedSigninPayload mirrors the deployed backend: signin wraps the
	// {user, session} pair under the user key. Signup always answers flat.
	NestedSigninPayload bool
	// StaticToken, when set, is issued verbatim instead of a signed JWT.
	StaticToken string
}

// Server is the in-memory API implementation.
type Server struct {
	app  *fiber.App
	opts Options

	mu         sync.Mutex
	accounts   map[string]*Account // keyed by email
	revoked    map[string]struct{}
	companies  map[string]map[string]any // keyed by company contact email
	staticSubs map[string]string         // static token -> account email

	ln  net.Listener
	url string
}

func New(opts Options) *Server {
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte("stubapi-signing-key")
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}

	s := &Server{
		opts:       opts,
		accounts:   map[string]*Account{},
		revoked:    map[string]struct{}{},
		companies:  map[string]map[string]any{},
		staticSubs: map[string]string{},
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post("/auth/signin", s.signin)
	app.Post("/auth/signup", s.signup)
	app.Post("/auth/signout", s.requireBearer(s.signout))
	app.Get("/auth/user", s.requireBearer(s.currentUser))
	app.Post("/onboarding/complete", s.requireBearer(s.completeOnboarding))
	app.Post("/onboarding/join", s.requireBearer(s.joinCompany))
	app.Post("/files/upload/:kind", s.requireBearer(s.upload))

	s.app = app
	return s
}

// Start listens on an ephemeral loopback port and returns the base URL.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}

	s.ln = ln
	s.url = "http://" + ln.Addr().String()

	go func() {
		_ = s.app.Listener(ln)
	}()

	return s.url, nil
}

// URL returns the base URL once started.
func (s *Server) URL() string {
	return s.url
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	return s.app.Shutdown()
}

// Register seeds an account without going through the signup endpoint.
func (s *Server) Register(email, password, fullName string) (*Account, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	id, err := hashid.NewUUID(email)
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:           id.String(),
		Email:        email,
		FullName:     fullName,
		Role:         "owner",
		CreatedAt:    time.Now(),
		passwordHash: hash,
	}

	s.mu.Lock()
	s.accounts[email] = account
	s.mu.Unlock()
	return account, nil
}

// SeedCompany makes a joinable company reachable at the given contact email.
func (s *Server) SeedCompany(contactEmail, companyName string) map[string]any {
	company := map[string]any{
		"id":           uuid.New().String(),
		"company_name": companyName,
		"owner_name":   companyName + " Owner",
		"email":        contactEmail,
		"phone":        "+14155550100",
		"created_at":   time.Now().Format(time.RFC3339),
		"updated_at":   time.Now().Format(time.RFC3339),
	}

	s.mu.Lock()
	s.companies[contactEmail] = company
	s.mu.Unlock()
	return company
}

// RevokeToken makes the server reject the token from now on, simulating
// credential expiry.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	s.revoked[token] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) signin(c *fiber.Ctx) error {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	s.mu.Lock()
	account, ok := s.accounts[payload.Email]
	s.mu.Unlock()

	if !ok || comparePassword(payload.Password, account.passwordHash) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}

	token, err := s.mintToken(account)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unable to issue token"})
	}

	sessionEnvelope := fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(s.opts.TokenTTL.Seconds()),
	}

	if s.opts.NestedSigninPayload {
		return c.JSON(fiber.Map{
			"message": "signed in",
			"user": fiber.Map{
				"user":    s.publicUser(account),
				"session": sessionEnvelope,
			},
		})
	}

	return c.JSON(fiber.Map{
		"message": "signed in",
		"user":    s.publicUser(account),
		"session": sessionEnvelope,
	})
}

func (s *Server) signup(c *fiber.Ctx) error {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if payload.Email == "" || payload.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and password are required"})
	}

	s.mu.Lock()
	_, exists := s.accounts[payload.Email]
	s.mu.Unlock()
	if exists {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "account already exists"})
	}

	account, err := s.Register(payload.Email, payload.Password, payload.FullName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unable to create account"})
	}

	token, err := s.mintToken(account)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unable to issue token"})
	}

	return c.JSON(fiber.Map{
		"message": "account created",
		"user":    s.publicUser(account),
		"session": fiber.Map{
			"access_token": token,
			"token_type":   "bearer",
			"expires_in":   int(s.opts.TokenTTL.Seconds()),
		},
	})
}

func (s *Server) signout(c *fiber.Ctx, account *Account, token string) error {
	s.RevokeToken(token)
	return c.JSON(fiber.Map{"message": "signed out"})
}

func (s *Server) currentUser(c *fiber.Ctx, account *Account, token string) error {
	return c.JSON(fiber.Map{"user": s.publicUser(account)})
}

func (s *Server) completeOnboarding(c *fiber.Ctx, account *Account, token string) error {
	var profile map[string]any
	if err := c.BodyParser(&profile); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	for _, field := range []string{"company_name", "owner_name", "email", "phone"} {
		if v, _ := profile[field].(string); v == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing required field: " + field})
		}
	}

	company := map[string]any{
		"id":         uuid.New().String(),
		"created_at": time.Now().Format(time.RFC3339),
		"updated_at": time.Now().Format(time.RFC3339),
	}
	for k, v := range profile {
		company[k] = v
	}

	s.mu.Lock()
	account.Company = company
	account.CompanyID = company["id"].(string)
	s.mu.Unlock()

	return c.JSON(fiber.Map{"message": "onboarding complete", "user": s.publicUser(account)})
}

func (s *Server) joinCompany(c *fiber.Ctx, account *Account, token string) error {
	var payload struct {
		CompanyEmail string `json:"company_email"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	s.mu.Lock()
	company, ok := s.companies[payload.CompanyEmail]
	if ok {
		account.Company = company
		account.CompanyID = company["id"].(string)
	}
	s.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no company found for that email"})
	}

	// linkage applied by side effect; the updated user is not returned inline
	return c.JSON(fiber.Map{"message": "joined", "company": true})
}

func (s *Server) upload(c *fiber.Ctx, account *Account, token string) error {
	kind := c.Params("kind")
	if kind != "logo" && kind != "document" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown asset kind"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file field is required"})
	}

	url := "https://assets.example.com/" + kind + "/" + uuid.New().String() + "/" + file.Filename
	return c.JSON(fiber.Map{"url": url})
}

type bearerHandler func(c *fiber.Ctx, account *Account, token string) error

func (s *Server) requireBearer(next bearerHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		token := strings.TrimPrefix(header, "Bearer ")

		s.mu.Lock()
		_, revoked := s.revoked[token]
		s.mu.Unlock()
		if revoked {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token revoked"})
		}

		email, err := s.subjectFor(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		s.mu.Lock()
		account, ok := s.accounts[email]
		s.mu.Unlock()
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown account"})
		}

		return next(c, account, token)
	}
}

func (s *Server) mintToken(account *Account) (string, error) {
	if s.opts.StaticToken != "" {
		s.mu.Lock()
		s.staticSubs[s.opts.StaticToken] = account.Email
		s.mu.Unlock()
		return s.opts.StaticToken, nil
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   account.Email,
		Issuer:    "stubapi",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
		ID:        uuid.New().String(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.SigningKey)
}

func (s *Server) subjectFor(token string) (string, error) {
	if s.opts.StaticToken != "" && token == s.opts.StaticToken {
		s.mu.Lock()
		email := s.staticSubs[token]
		s.mu.Unlock()
		if email != "" {
			return email, nil
		}
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return s.opts.SigningKey, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

func (s *Server) publicUser(account *Account) fiber.Map {
	user := fiber.Map{
		"id":         account.ID,
		"email":      account.Email,
		"full_name":  account.FullName,
		"role":       account.Role,
		"created_at": account.CreatedAt.Format(time.RFC3339),
	}
	if account.CompanyID != "" {
		user["company_id"] = account.CompanyID
	}
	if account.Company != nil {
		user["company"] = account.Company
	}
	return user
}
