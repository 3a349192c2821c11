package util

import (
	"errors"
	"path/filepath"
	"strings"
)

const maxFileNameBytes = 200

// SanitizeFileName removes path separators and rejects traversal patterns.
// Overlong names are truncated at the stem so storage keys stay within
// object-store limits; the extension is kept.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	if len(s) > maxFileNameBytes {
		ext := filepath.Ext(s)
		if len(ext) >= maxFileNameBytes {
			ext = ""
		}
		s = s[:maxFileNameBytes-len(ext)] + ext
	}
	return s, nil
}
