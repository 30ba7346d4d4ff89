// Package domain contains core business types and interfaces.
//
// This file defines the photo constants and validation helpers used when
// evidence photos are uploaded or embedded into reports.
package domain

// SupportedImageTypes maps MIME types to their human-readable names.
var SupportedImageTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
	"image/webp": "WebP",
}

const (
	// MaxImageSize is the maximum allowed size for uploaded photos (20MB).
	MaxImageSize = 20 * 1024 * 1024

	// ReportImageMaxPixels bounds the longest side of photos embedded in reports.
	ReportImageMaxPixels = 1600

	// ReportJPEGQuality is the JPEG quality for photos embedded in reports.
	ReportJPEGQuality = 85
)

// IsValidImageContentType checks if the content type is supported.
func IsValidImageContentType(contentType string) bool {
	_, ok := SupportedImageTypes[contentType]
	return ok
}

// ValidateImageSize checks if the file size is within limits.
func ValidateImageSize(size int64) error {
	if size > MaxImageSize {
		return Errorf(ETOOLARGE, "image.validate", "Image size %d bytes exceeds maximum of %d bytes (%.1fMB)", size, MaxImageSize, float64(MaxImageSize)/(1024*1024))
	}
	if size == 0 {
		return Invalid("image.validate", "Image file is empty")
	}
	return nil
}
