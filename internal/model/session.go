package model

// SessionData is the JSON value stored under oauth_session:<id> in Redis.
// During the OAuth handshake only State is set; on callback success the
// record is overwritten with the user snapshot and token.
type SessionData struct {
	State       string `json:"state,omitempty"`
	User        *User  `json:"user,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	LoggedInAt  int64  `json:"loggedInAt,omitempty"` // unix milliseconds
}

// Session pairs a verified session id with its stored data.
type Session struct {
	ID   string
	Data SessionData
}

// User returns the authenticated user, or nil for pending/anonymous sessions.
func (s *Session) User() *User {
	if s == nil {
		return nil
	}
	return s.Data.User
}
