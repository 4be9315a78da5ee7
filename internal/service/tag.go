package service

import (
	"context"
	"math/rand"
	"strings"

	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/model"
)

// tagColors is the palette new tags draw from. The first unused color is
// picked; once all are in use the choice is random.
var tagColors = []string{
	"#ff6b6b", "#feca57", "#48dbfb", "#ff9ff3", "#54a0ff",
	"#5f27cd", "#00d2d3", "#1dd1a1", "#ff9f43", "#ee5a24",
	"#009432", "#0652dd", "#9980fa", "#f368e0", "#ff4757",
}

// TagKV is the Redis surface the tag catalog needs. UpdateTags applies a
// read-modify-write under optimistic concurrency control; apply may be
// invoked more than once.
type TagKV interface {
	GetTags(ctx context.Context) ([]model.Tag, error)
	UpdateTags(ctx context.Context, apply func([]model.Tag) ([]model.Tag, error)) error
}

// TagService manages the global tag catalog stored as a single JSON
// document.
type TagService struct {
	kv TagKV
}

func NewTagService(kv TagKV) *TagService {
	return &TagService{kv: kv}
}

func assignColor(existing []model.Tag) string {
	used := make(map[string]bool, len(existing))
	for _, t := range existing {
		if t.Color != "" {
			used[t.Color] = true
		}
	}
	for _, c := range tagColors {
		if !used[c] {
			return c
		}
	}
	return tagColors[rand.Intn(len(tagColors))]
}

func (s *TagService) List(ctx context.Context) ([]model.Tag, error) {
	tags, err := s.kv.GetTags(ctx)
	if err != nil {
		return nil, apperrors.Unavailable("tag store unavailable").WithCause(err)
	}
	return tags, nil
}

// Create adds a tag. An empty color picks one from the palette. Names
// are unique case-sensitively, matching how they are stored on todos.
func (s *TagService) Create(ctx context.Context, name, color string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	color = strings.TrimSpace(color)

	var created model.Tag
	err := s.kv.UpdateTags(ctx, func(tags []model.Tag) ([]model.Tag, error) {
		for _, t := range tags {
			if t.Name == name {
				return nil, apperrors.AlreadyExists("Tag already exists")
			}
		}
		c := color
		if c == "" {
			c = assignColor(tags)
		}
		created = model.Tag{Name: name, Color: c}
		return append(tags, created), nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Unavailable("tag store unavailable").WithCause(err)
	}
	return &created, nil
}

// UpdateColor changes the color of an existing tag.
func (s *TagService) UpdateColor(ctx context.Context, name, color string) (*model.Tag, error) {
	if strings.TrimSpace(color) == "" {
		return nil, apperrors.MissingRequired("color")
	}

	var updated model.Tag
	err := s.kv.UpdateTags(ctx, func(tags []model.Tag) ([]model.Tag, error) {
		for i := range tags {
			if tags[i].Name == name {
				tags[i].Color = color
				updated = tags[i]
				return tags, nil
			}
		}
		return nil, apperrors.NotFound("Tag")
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Unavailable("tag store unavailable").WithCause(err)
	}
	return &updated, nil
}

// Delete removes a tag from the catalog. Deleting a name that is not
// present is not an error; todos keep whatever tag names they reference.
func (s *TagService) Delete(ctx context.Context, name string) error {
	err := s.kv.UpdateTags(ctx, func(tags []model.Tag) ([]model.Tag, error) {
		kept := tags[:0]
		for _, t := range tags {
			if t.Name != name {
				kept = append(kept, t)
			}
		}
		return kept, nil
	})
	if err != nil {
		return apperrors.Unavailable("tag store unavailable").WithCause(err)
	}
	return nil
}
