package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/todoshare/server-go/internal/model"
)

// TagsKey holds the whole tag list as one JSON array.
const TagsKey = "tags_list_v2"

const tagUpdateRetries = 5

// ErrTagListBusy is returned when optimistic retries are exhausted under
// heavy concurrent tag edits.
var ErrTagListBusy = errors.New("tag list busy, try again")

// GetTags reads and decodes the tag list. A missing key is an empty list.
func (c *Client) GetTags(ctx context.Context) ([]model.Tag, error) {
	raw, err := c.Get(ctx, TagsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.Tag{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeTags(raw)
}

// UpdateTags applies a read-modify-write to the tag list under WATCH, so
// concurrent edits fail the transaction instead of silently overwriting
// each other. An error returned by apply aborts the update and is passed
// through unchanged.
func (c *Client) UpdateTags(ctx context.Context, apply func([]model.Tag) ([]model.Tag, error)) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, TagsKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		tags := []model.Tag{}
		if len(raw) > 0 {
			if tags, err = decodeTags(raw); err != nil {
				return err
			}
		}

		next, err := apply(tags)
		if err != nil {
			return err
		}

		buf, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, TagsKey, buf, 0)
			return nil
		})
		return err
	}

	for i := 0; i < tagUpdateRetries; i++ {
		err := c.Watch(ctx, txf, TagsKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return ErrTagListBusy
}

func decodeTags(raw []byte) ([]model.Tag, error) {
	var tags []model.Tag
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, fmt.Errorf("decode tag list: %w", err)
	}
	return tags, nil
}
