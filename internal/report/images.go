package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// =============================================================================
// Image Sources
// =============================================================================

// ImageSource resolves an evidence photo reference to image bytes.
type ImageSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// PhotoSource resolves the three kinds of photo references found on
// phases: inline data URLs, absolute http(s) URLs and storage keys.
type PhotoSource struct {
	storage    storage.Storage
	downloader ImageDownloader
}

// NewPhotoSource creates a PhotoSource. Either dependency may be nil, in
// which case references of that kind fail to resolve.
func NewPhotoSource(store storage.Storage, downloader ImageDownloader) *PhotoSource {
	return &PhotoSource{storage: store, downloader: downloader}
}

// Fetch returns the bytes of the referenced image.
func (s *PhotoSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return DecodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if s.downloader == nil {
			return nil, fmt.Errorf("no downloader for %q", ref)
		}
		img, err := s.downloader.Download(ctx, ref)
		if err != nil {
			return nil, err
		}
		return img.Data, nil
	default:
		if s.storage == nil {
			return nil, fmt.Errorf("no storage for %q", ref)
		}
		rc, _, err := s.storage.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, domain.MaxImageSize+1))
	}
}

// DecodeDataURL extracts the payload of a base64 data URL.
func DecodeDataURL(ref string) ([]byte, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, errors.New("malformed data URL")
	}
	meta, payload := ref[len("data:"):comma], ref[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return data, nil
}

// =============================================================================
// Normalization
// =============================================================================

// NormalizeImage re-encodes an image into a form the PDF writer embeds
// reliably, applying EXIF orientation and bounding its size. PNG images
// stay PNG to keep transparency; everything else becomes a JPEG flattened
// onto white. It returns the encoded bytes and the fpdf image type.
func NormalizeImage(data []byte, maxPixels int) ([]byte, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("detect image format: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s image: %w", format, err)
	}

	b := img.Bounds()
	if maxPixels > 0 && (b.Dx() > maxPixels || b.Dy() > maxPixels) {
		img = imaging.Fit(img, maxPixels, maxPixels, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if format == "png" {
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "PNG", nil
	}

	bounds := img.Bounds()
	flat := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(domain.ReportJPEGQuality)); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "JPEG", nil
}
