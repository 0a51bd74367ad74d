package session

import (
	"bytes"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
)

// tokenPayload is the session envelope some deployments return alongside the
// user record.
type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// FlatUserResponse is the conformant shape: the user object at the top level
// with an optional sibling session envelope.
type FlatUserResponse struct {
	User    *User         `json:"user"`
	Session *tokenPayload `json:"session,omitempty"`
	Message string        `json:"message,omitempty"`
}

// NestedUserResponse is the shape some backends produce where the user key
// wraps another {user, session} pair.
type NestedUserResponse struct {
	User struct {
		User    *User         `json:"user"`
		Session *tokenPayload `json:"session,omitempty"`
	} `json:"user"`
	Session *tokenPayload `json:"session,omitempty"`
	Message string        `json:"message,omitempty"`
}

// errorEnvelope carries the machine-usable failure message of non-2xx bodies.
type errorEnvelope struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e errorEnvelope) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// normalizeAuthResponse folds either accepted response shape into a Session.
// The token is taken from the nested session envelope when present, falling
// back to the top-level one. fallbackToken covers operations where the server
// omits the envelope and the previously held credential stays in force.
func normalizeAuthResponse(body []byte, fallbackToken string) (*Session, error) {
	var probe struct {
		User    json.RawMessage `json:"user"`
		Session *tokenPayload   `json:"session"`
	}

	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to parse response body").
			WithTextCode(textCodeInvalidResponse)
	}

	if len(probe.User) == 0 || bytes.Equal(probe.User, []byte("null")) {
		return nil, ErrInvalidResponse
	}

	var (
		user  *User
		token string
	)

	if isNestedUserPayload(probe.User) {
		var nested NestedUserResponse
		if err := json.Unmarshal(body, &nested); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to parse nested user payload").
				WithTextCode(textCodeInvalidResponse)
		}
		user = nested.User.User
		if nested.User.Session != nil {
			token = nested.User.Session.AccessToken
		} else if nested.Session != nil {
			token = nested.Session.AccessToken
		}
	} else {
		var flat FlatUserResponse
		if err := json.Unmarshal(body, &flat); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to parse user payload").
				WithTextCode(textCodeInvalidResponse)
		}
		user = flat.User
		if flat.Session != nil {
			token = flat.Session.AccessToken
		}
	}

	if user == nil || user.ID == "" {
		return nil, ErrInvalidResponse
	}

	if token == "" {
		token = fallbackToken
	}

	return &Session{User: user, Token: token}, nil
}

// isNestedUserPayload reports whether the raw user object wraps another user
// key, which is how we tell the two accepted shapes apart.
func isNestedUserPayload(raw json.RawMessage) bool {
	var inner struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return false
	}
	return len(inner.User) > 0 && !bytes.Equal(inner.User, []byte("null"))
}
