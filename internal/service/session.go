package service

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/todoshare/server-go/internal/model"
	"github.com/todoshare/server-go/internal/util"
)

// SessionKV is the Redis surface sessions need.
type SessionKV interface {
	GetSession(ctx context.Context, id string) (*model.SessionData, error)
	SetSession(ctx context.Context, id string, data *model.SessionData, ttl time.Duration) error
	DeleteSession(ctx context.Context, id string) error
}

// SessionStore creates, reads and destroys signed cookie sessions backed
// by a TTL key-value store. The cookie value is "<id>.<hmac>"; only the
// id is stored server-side.
type SessionStore struct {
	kv     SessionKV
	secret string
}

func NewSessionStore(kv SessionKV, secret string) *SessionStore {
	return &SessionStore{kv: kv, secret: secret}
}

// Create stores data under a fresh session id and returns the id plus
// the signed cookie value for it.
func (s *SessionStore) Create(ctx context.Context, data *model.SessionData, ttl time.Duration) (string, string, error) {
	id := uuid.NewString()
	if err := s.kv.SetSession(ctx, id, data, ttl); err != nil {
		return "", "", err
	}
	return id, util.SignValue(s.secret, id), nil
}

// Update overwrites the data for an existing session id, resetting its
// TTL, and returns the signed cookie value.
func (s *SessionStore) Update(ctx context.Context, id string, data *model.SessionData, ttl time.Duration) (string, error) {
	if err := s.kv.SetSession(ctx, id, data, ttl); err != nil {
		return "", err
	}
	return util.SignValue(s.secret, id), nil
}

// Read resolves the session for a request. It returns nil for any
// recoverable failure: absent cookie, bad signature, or an expired or
// missing store entry. The caller cannot distinguish these cases, which
// is intentional.
func (s *SessionStore) Read(ctx context.Context, r *http.Request) *model.Session {
	cookie, err := r.Cookie("session")
	if err != nil || cookie.Value == "" {
		return nil
	}

	id, ok := util.VerifySignedValue(s.secret, cookie.Value)
	if !ok {
		return nil
	}

	data, err := s.kv.GetSession(ctx, id)
	if err != nil || data == nil {
		return nil
	}

	return &model.Session{ID: id, Data: *data}
}

// Destroy deletes the session from the store. Missing sessions are not
// an error.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	return s.kv.DeleteSession(ctx, id)
}
