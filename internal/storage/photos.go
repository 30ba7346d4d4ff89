package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Photo Store
// =============================================================================

// PhotoStore keeps uploaded evidence photos. Phases reference a stored
// photo by its key in place of an inline data URL.
type PhotoStore struct {
	storage Storage
	linkTTL time.Duration
}

// NewPhotoStore creates a PhotoStore on top of s. Links handed to clients
// stay valid for linkTTL.
func NewPhotoStore(s Storage, linkTTL time.Duration) *PhotoStore {
	if linkTTL <= 0 {
		linkTTL = time.Hour
	}
	return &PhotoStore{storage: s, linkTTL: linkTTL}
}

// Upload is an evidence photo on its way into storage.
type Upload struct {
	InspectionID uuid.UUID
	InstanceID   uuid.UUID
	Phase        int
	ContentType  string
	Data         []byte
}

// Store validates and saves a photo, returning its key.
func (p *PhotoStore) Store(ctx context.Context, u Upload) (string, error) {
	const op = "photo.store"

	if err := domain.ValidateImageSize(int64(len(u.Data))); err != nil {
		return "", err
	}
	if u.Phase < domain.PhaseFinding || u.Phase >= domain.PhaseCount {
		return "", domain.Errorf(domain.EINVALID, op, "Phase %d does not exist.", u.Phase)
	}

	contentType := baseType(DetectContentType(u.ContentType, "", u.Data))
	if contentType == "image/jpg" {
		contentType = "image/jpeg"
	}
	if !domain.IsValidImageContentType(contentType) {
		return "", domain.Errorf(domain.EINVALID, op, "Unsupported image type %q.", contentType)
	}

	key := PhotoKey(u.InspectionID, u.InstanceID, u.Phase, ExtensionFor(contentType))
	err := p.storage.Put(ctx, key, bytes.NewReader(u.Data), PutOptions{
		ContentType: contentType,
		MaxSize:     domain.MaxImageSize,
	})
	if err != nil {
		if IsTooLarge(err) {
			return "", domain.Errorf(domain.ETOOLARGE, op, "Image exceeds the maximum size.")
		}
		return "", domain.Internal(err, op, "Failed to store photo.")
	}
	return key, nil
}

// Resolve turns a phase photo reference into an address a client can load.
// Inline data URLs and absolute URLs are returned unchanged.
func (p *PhotoStore) Resolve(ctx context.Context, ref string) (string, error) {
	const op = "photo.resolve"

	if ref == "" || IsInlineRef(ref) {
		return ref, nil
	}
	url, err := p.storage.URL(ctx, ref, p.linkTTL)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return "", domain.Invalid(op, "Invalid photo reference.")
		}
		return "", domain.Internal(err, op, "Failed to resolve photo.")
	}
	return url, nil
}

// IsInlineRef reports whether ref carries or points to the photo itself
// rather than naming a stored object.
func IsInlineRef(ref string) bool {
	return strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://")
}
