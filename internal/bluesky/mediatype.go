package bluesky

import (
	"path/filepath"
	"strings"
)

// contentTypes maps short format names and image file suffixes to MIME
// content types. The request-body encodings and the supported image formats
// share one table.
var contentTypes = map[string]string{
	"json":         "application/json",
	"urlencoded":   "application/x-www-form-urlencoded",
	"multipart":    "multipart/form-data",
	"octet-stream": "application/octet-stream",
	"jpg":          "image/jpeg",
	"jpeg":         "image/jpeg",
	"png":          "image/png",
	"webp":         "image/webp",
}

// MediaTypeForExt returns the content type for a file path based on its
// extension. The second result is false when the extension is not a
// supported media format.
func MediaTypeForExt(path string) (string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", false
	}
	ct, ok := contentTypes[ext]
	if !ok || !strings.HasPrefix(ct, "image/") {
		return "", false
	}
	return ct, true
}
