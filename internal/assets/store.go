package assets

import (
	"context"
	"regexp"
	"strings"
)

// Relocator copies a generated asset from a provider-hosted URL into storage
// the platform controls, returning the permanent URL. Callers that cannot
// tolerate relocation failure should fall back to the source URL instead of
// failing their own operation.
type Relocator interface {
	Store(ctx context.Context, sourceURL, destKey, contentTypeHint string) (string, error)
}

var extPattern = regexp.MustCompile(`\.([a-zA-Z0-9]+)(\?|$)`)

// ExtFromURL extracts the file extension from a URL, defaulting to png.
func ExtFromURL(url string) string {
	m := extPattern.FindStringSubmatch(url)
	if m == nil {
		return "png"
	}
	return strings.ToLower(m[1])
}

// ContentTypeForExt maps common generated-media extensions to MIME types.
func ContentTypeForExt(ext string) string {
	switch ext {
	case "mp4":
		return "video/mp4"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
