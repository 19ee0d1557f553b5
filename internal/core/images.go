package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"gardenkeep/internal/blob"
	"gardenkeep/pkg/domain"
)

// ImagePathPrefix is the API path images are served from when the blob
// backend cannot sign URLs.
const ImagePathPrefix = "/api/images/"

// ImageURLExpiry bounds presigned image URLs.
const ImageURLExpiry = 24 * time.Hour

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// ImageService stores plant photos in a blob backend.
type ImageService struct {
	svc   *Service
	store blob.Store
}

// NewImageService binds an image store to the service's instrumentation.
func NewImageService(svc *Service, store blob.Store) *ImageService {
	return &ImageService{svc: svc, store: store}
}

// Upload stores r under plants/<user>/<uuid><ext> and returns its info with
// URL populated.
func (s *ImageService) Upload(ctx context.Context, user domain.UserID, name, contentType string, r io.Reader) (blob.Info, error) {
	if user.IsNull() {
		return blob.Info{}, domain.ErrAccessDenied
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return blob.Info{}, &domain.ValidationError{Field: "content_type", Reason: fmt.Sprintf("%q is not an image type", contentType)}
	}
	key := ImageKey(user, name, mediaType)

	var info blob.Info
	err = s.svc.run(ctx, "upload_image", user, func(ctx context.Context) (string, error) {
		var err error
		info, err = s.store.Put(ctx, key, r, blob.PutOptions{
			ContentType: mediaType,
			Metadata:    map[string]string{"user": user.String(), "filename": path.Base(name)},
		})
		return key, err
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("upload image: %w", err)
	}
	url, err := s.URL(ctx, key)
	if err != nil {
		return blob.Info{}, err
	}
	info.URL = url
	return info, nil
}

// ImageKey builds the storage key for a new upload. The extension comes from
// name when present, otherwise from the media type.
func ImageKey(user domain.UserID, name, mediaType string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || len(ext) > 6 {
		ext = imageExtensions[mediaType]
	}
	return fmt.Sprintf("plants/%s/%s%s", user, uuid.NewString(), ext)
}

// URL returns a presigned URL when the backend supports one, otherwise the
// API path the image is served from.
func (s *ImageService) URL(ctx context.Context, key string) (string, error) {
	url, err := s.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: ImageURLExpiry})
	switch {
	case err == nil:
		return url, nil
	case errors.Is(err, blob.ErrUnsupported):
		return ImagePathPrefix + key, nil
	default:
		return "", fmt.Errorf("image url %s: %w", key, err)
	}
}

// Open returns the stored image. A missing key wraps domain.ErrNotFound.
func (s *ImageService) Open(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	info, rc, err := s.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, nil, domain.NotFoundError{Entity: domain.EntityImage, ID: key}
	}
	if err != nil {
		return blob.Info{}, nil, fmt.Errorf("open image %s: %w", key, err)
	}
	return info, rc, nil
}

// Delete removes one of user's images.
func (s *ImageService) Delete(ctx context.Context, user domain.UserID, key string) error {
	if user.IsNull() {
		return domain.ErrAccessDenied
	}
	if !strings.HasPrefix(key, fmt.Sprintf("plants/%s/", user)) {
		return domain.NotFoundError{Entity: domain.EntityImage, ID: key}
	}
	err := s.svc.run(ctx, "delete_image", user, func(ctx context.Context) (string, error) {
		existed, err := s.store.Delete(ctx, key)
		if err == nil && !existed {
			err = domain.NotFoundError{Entity: domain.EntityImage, ID: key}
		}
		return key, err
	})
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// List returns user's stored images with URLs populated.
func (s *ImageService) List(ctx context.Context, user domain.UserID) ([]blob.Info, error) {
	if user.IsNull() {
		return nil, domain.ErrAccessDenied
	}
	infos, err := s.store.List(ctx, fmt.Sprintf("plants/%s/", user))
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	for i := range infos {
		url, err := s.URL(ctx, infos[i].Key)
		if err != nil {
			return nil, err
		}
		infos[i].URL = url
	}
	return infos, nil
}
