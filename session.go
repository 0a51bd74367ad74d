package session

import (
	"fmt"
	"time"
)

// Session is the resolved identity plus its bearer credential. Token present
// implies User.ID present; Company present implies Token present (company
// linkage is only ever learned from an authenticated server response).
type Session struct {
	User  *User  `json:"user,omitempty"`
	Token string `json:"token,omitempty"`
}

// IsAuthenticated reports whether both the user record and the credential are
// held.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.User != nil && s.User.ID != "" && s.Token != ""
}

// NeedsOnboarding reports whether the account is authenticated but has no
// company attached yet.
func (s *Session) NeedsOnboarding() bool {
	return s.IsAuthenticated() && !s.User.HasCompany()
}

func (s Session) String() string {
	userID := "<nil>"
	company := "<none>"
	if s.User != nil {
		userID = s.User.ID
		if s.User.Company != nil {
			company = s.User.Company.ID
		}
	}
	token := "<none>"
	if s.Token != "" {
		token = "present"
	}
	return fmt.Sprintf("user=%s company=%s token=%s", userID, company, token)
}

// CachedCredential mirrors the last known session into durable storage so a
// restart does not need a network round trip before rendering. It is advisory
// only: a failed revalidation against the server invalidates and clears it.
type CachedCredential struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session converts the cached pair back into an in-memory session.
func (c *CachedCredential) Session() *Session {
	if c == nil {
		return nil
	}
	return &Session{User: c.User, Token: c.Token}
}

// Valid reports whether the pair is structurally usable: a token always
// travels with its user id.
func (c *CachedCredential) Valid() bool {
	return c != nil && c.User != nil && c.User.ID != "" && c.Token != ""
}
