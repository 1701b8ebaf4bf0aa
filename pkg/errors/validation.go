package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// maxComponentIDLength bounds component ids accepted from declaration files.
const maxComponentIDLength = 256

// ValidateComponentID validates a component id read from a declaration file.
// The engine itself treats ids as opaque; this check only guards the
// registry boundary against ids that cannot be printed or addressed.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No leading or trailing whitespace
//   - No control characters
//   - Maximum length of 256 characters
func ValidateComponentID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidManifest, "component id cannot be empty")
	}

	if len(id) > maxComponentIDLength {
		return New(ErrCodeInvalidManifest, "component id too long (max %d characters)", maxComponentIDLength)
	}

	if strings.TrimSpace(id) != id {
		return New(ErrCodeInvalidManifest, "component id %q has surrounding whitespace", id)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidManifest, "component id %q contains control characters", id)
		}
	}

	return nil
}

// ValidateAssetPath validates a file path declared by a library.
// Asset paths are emitted verbatim by the loader, so they must be relative
// and stay inside the declaring project.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidateAssetPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") || filepath.IsAbs(path) {
		return New(ErrCodeInvalidPath, "path must be relative: %q", path)
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..): %q", path)
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes: %q", path)
	}

	return nil
}
