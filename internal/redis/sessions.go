package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/todoshare/server-go/internal/model"
)

// GetSession returns the decoded session payload, or nil when the key is
// missing or expired.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*model.SessionData, error) {
	raw, err := c.Get(ctx, SessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data model.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &data, nil
}

// SetSession writes the session payload with the given TTL, replacing any
// existing value. Expiry is enforced by Redis.
func (c *Client) SetSession(ctx context.Context, sessionID string, data *model.SessionData, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	return c.Set(ctx, SessionKey(sessionID), raw, ttl).Err()
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.Del(ctx, SessionKey(sessionID)).Err()
}
