package storage

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// baseType strips parameters from a MIME type and lowercases it.
func baseType(contentType string) string {
	t := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(t))
}

// DetectContentType picks the MIME type of an object: the provided type,
// else the key extension, else a sniff of head, else octet-stream.
func DetectContentType(provided, key string, head []byte) string {
	if provided != "" {
		return provided
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(key))); t != "" {
		return t
	}
	if len(head) > 0 {
		return http.DetectContentType(head)
	}
	return "application/octet-stream"
}

// ExtensionFor returns the file extension stored objects of contentType use.
func ExtensionFor(contentType string) string {
	switch baseType(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
