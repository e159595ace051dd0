package server

import (
	"path/filepath"
	"strings"
)

// defaultContentType is used for extensions outside the table.
const defaultContentType = "application/octet-stream"

// contentTypes maps the extensions the app commonly shares. Anything else
// falls back to octet-stream.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".txt":  "text/plain",
	".json": "application/json",
	".zip":  "application/zip",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
}

// contentTypeFor resolves the MIME type for a file name by extension.
func contentTypeFor(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return defaultContentType
}
