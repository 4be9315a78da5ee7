package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/todoshare/server-go/internal/blob"
	"github.com/todoshare/server-go/internal/config"
	apperrors "github.com/todoshare/server-go/internal/errors"
	"github.com/todoshare/server-go/internal/model"
	"github.com/todoshare/server-go/internal/util"
)

// BlobStore is the object-store surface attachments need.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType, filename string) error
	Get(ctx context.Context, key string) (io.ReadCloser, *blob.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// AttachmentService stores todo attachments in an S3-compatible bucket.
// Keys are namespaced per todo; uploads before the todo exists go under
// "temp".
type AttachmentService struct {
	store BlobStore
}

func NewAttachmentService(store BlobStore) *AttachmentService {
	return &AttachmentService{store: store}
}

// Upload stores the file and returns metadata the client embeds in the
// todo's attachment list. The size limit is checked before anything is
// written.
func (s *AttachmentService) Upload(ctx context.Context, todoID, filename, contentType string, r io.Reader, size int64) (*model.Attachment, error) {
	if filename == "" {
		return nil, apperrors.MissingRequired("file")
	}
	if size > config.MaxUploadBytes {
		return nil, apperrors.ValidationError("File too large (max 5MB)")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	suffix, err := util.RandomString(4)
	if err != nil {
		return nil, apperrors.Internal("failed to generate attachment key").WithCause(err)
	}
	scope := todoID
	if scope == "" {
		scope = "temp"
	}
	key := fmt.Sprintf("attachments/%s/%d-%s%s", scope, time.Now().UnixMilli(), suffix, path.Ext(filename))

	if err := s.store.Put(ctx, key, r, size, contentType, filename); err != nil {
		return nil, apperrors.External("object store", err)
	}

	return &model.Attachment{
		Key:  key,
		Name: filename,
		Size: size,
		Type: contentType,
		URL:  "/api/attachments/" + url.PathEscape(key),
	}, nil
}

// Open streams a stored attachment. The caller must close the reader.
func (s *AttachmentService) Open(ctx context.Context, key string) (io.ReadCloser, *blob.ObjectInfo, error) {
	if !validAttachmentKey(key) {
		return nil, nil, apperrors.NotFound("File")
	}

	rc, info, err := s.store.Get(ctx, key)
	if err != nil {
		if err == blob.ErrNotFound {
			return nil, nil, apperrors.NotFound("File")
		}
		return nil, nil, apperrors.External("object store", err)
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}
	return rc, info, nil
}

// Remove deletes a stored attachment. Deleting a missing key succeeds.
func (s *AttachmentService) Remove(ctx context.Context, key string) error {
	if !validAttachmentKey(key) {
		return apperrors.NotFound("File")
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return apperrors.External("object store", err)
	}
	return nil
}

// validAttachmentKey confines object access to the attachments prefix
// and rejects traversal attempts.
func validAttachmentKey(key string) bool {
	return strings.HasPrefix(key, "attachments/") && !strings.Contains(key, "..")
}
