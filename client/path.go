package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxFileNameLength matches typical filesystem limits, extension included.
const maxFileNameLength = 255

// fallbackFileName is used when sanitization strips a name to nothing.
const fallbackFileName = "download"

// invalidNameChars are stripped from received file names before they touch
// the local filesystem.
const invalidNameChars = `<>:"/\|?*`

// sanitizeFileName strips characters that are unsafe in file names and caps
// the length at maxFileNameLength, preserving the extension.
func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(invalidNameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return fallbackFileName
	}

	if len(cleaned) <= maxFileNameLength {
		return cleaned
	}
	ext := filepath.Ext(cleaned)
	if len(ext) >= maxFileNameLength {
		return cleaned[:maxFileNameLength]
	}
	base := cleaned[:maxFileNameLength-len(ext)]
	return base + ext
}

// resolveSavePath returns a path in dir for fileName that does not collide
// with an existing file, appending _1, _2, … before the extension until a
// free name is found.
func resolveSavePath(dir, fileName string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	candidate := filepath.Join(dir, fileName)
	if !fileExists(candidate) {
		return candidate, nil
	}

	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if !fileExists(candidate) {
			return candidate, nil
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
