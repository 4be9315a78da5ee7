package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/model"
)

type fakeTagKV struct {
	tags []model.Tag
}

func (f *fakeTagKV) GetTags(_ context.Context) ([]model.Tag, error) {
	return append([]model.Tag{}, f.tags...), nil
}

func (f *fakeTagKV) UpdateTags(_ context.Context, apply func([]model.Tag) ([]model.Tag, error)) error {
	next, err := apply(append([]model.Tag{}, f.tags...))
	if err != nil {
		return err
	}
	f.tags = next
	return nil
}

func TestTagCreate(t *testing.T) {
	kv := &fakeTagKV{}
	svc := NewTagService(kv)

	tag, err := svc.Create(context.Background(), " work ", "")
	require.NoError(t, err)
	assert.Equal(t, "work", tag.Name)
	assert.Equal(t, tagColors[0], tag.Color, "first tag gets the first palette color")

	tag2, err := svc.Create(context.Background(), "home", "")
	require.NoError(t, err)
	assert.Equal(t, tagColors[1], tag2.Color)
}

func TestTagCreateDuplicate(t *testing.T) {
	kv := &fakeTagKV{tags: []model.Tag{{Name: "work", Color: "#ff6b6b"}}}
	svc := NewTagService(kv)

	_, err := svc.Create(context.Background(), "work", "")
	assert.Equal(t, apperrors.ErrCodeAlreadyExists, apperrors.GetCode(err))
	assert.Len(t, kv.tags, 1)
}

func TestTagCreateEmptyName(t *testing.T) {
	svc := NewTagService(&fakeTagKV{})

	_, err := svc.Create(context.Background(), "  ", "")
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestTagCreateExplicitColor(t *testing.T) {
	kv := &fakeTagKV{}
	svc := NewTagService(kv)

	tag, err := svc.Create(context.Background(), "urgent", "#123456")
	require.NoError(t, err)
	assert.Equal(t, "#123456", tag.Color)
}

func TestTagCreateExhaustedPalette(t *testing.T) {
	kv := &fakeTagKV{}
	for _, c := range tagColors {
		kv.tags = append(kv.tags, model.Tag{Name: "t" + c, Color: c})
	}
	svc := NewTagService(kv)

	tag, err := svc.Create(context.Background(), "overflow", "")
	require.NoError(t, err)
	assert.Contains(t, tagColors, tag.Color, "falls back to a random palette color")
}

func TestTagUpdateColor(t *testing.T) {
	kv := &fakeTagKV{tags: []model.Tag{{Name: "work", Color: "#ff6b6b"}}}
	svc := NewTagService(kv)

	tag, err := svc.UpdateColor(context.Background(), "work", "#000000")
	require.NoError(t, err)
	assert.Equal(t, "#000000", tag.Color)
	assert.Equal(t, "#000000", kv.tags[0].Color)
}

func TestTagUpdateColorMissingColor(t *testing.T) {
	svc := NewTagService(&fakeTagKV{tags: []model.Tag{{Name: "work"}}})

	_, err := svc.UpdateColor(context.Background(), "work", " ")
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestTagUpdateColorNotFound(t *testing.T) {
	svc := NewTagService(&fakeTagKV{})

	_, err := svc.UpdateColor(context.Background(), "ghost", "#000000")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestTagDelete(t *testing.T) {
	kv := &fakeTagKV{tags: []model.Tag{{Name: "work"}, {Name: "home"}}}
	svc := NewTagService(kv)

	require.NoError(t, svc.Delete(context.Background(), "work"))
	require.Len(t, kv.tags, 1)
	assert.Equal(t, "home", kv.tags[0].Name)

	// Deleting something absent is silently fine.
	require.NoError(t, svc.Delete(context.Background(), "ghost"))
	assert.Len(t, kv.tags, 1)
}

func TestTagList(t *testing.T) {
	kv := &fakeTagKV{tags: []model.Tag{{Name: "work", Color: "#ff6b6b"}}}
	svc := NewTagService(kv)

	tags, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}
