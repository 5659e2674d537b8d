package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// ValidateName validates an actor or folder name for safety.
//
// The validation rules are intentionally conservative:
//   - No control characters or null bytes
//   - Maximum length of 256 characters
//
// Empty names are allowed: the layout engine files them under the
// non-alphabetic letter bucket and the mirror drops empty folder names.
func ValidateName(name string) error {
	if len(name) > 256 {
		return New(ErrCodeInvalidName, "name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "name contains invalid control characters")
		}
	}

	return nil
}

// worldExtensions lists the world document formats that can be loaded.
var worldExtensions = map[string]bool{
	".json": true,
	".toml": true,
	".yaml": true,
	".yml":  true,
}

// ValidateWorldPath validates a world document path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - Extension must be one of .json, .toml, .yaml, .yml
func ValidateWorldPath(path string) error {
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

	ext := strings.ToLower(filepath.Ext(path))
	if !worldExtensions[ext] {
		return New(ErrCodeInvalidFormat, "unsupported world format %q (must be .json, .toml, .yaml or .yml)", ext)
	}

	return nil
}

// archiveTargetRegex matches "<scope>.<name>" archive keys, e.g. "world.actor-archive".
var archiveTargetRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*\.[a-z0-9][a-z0-9._-]*$`)

// ValidateArchiveTarget validates an archive target key.
func ValidateArchiveTarget(target string) error {
	if target == "" {
		return New(ErrCodeConfiguration, "archive target cannot be empty")
	}
	if !archiveTargetRegex.MatchString(target) {
		return New(ErrCodeConfiguration, "invalid archive target %q (expected <scope>.<name>)", target)
	}
	return nil
}

// ValidateURL validates a backend URL string for safety.
// It ensures the URL uses one of the allowed schemes.
func ValidateURL(rawURL string, schemes ...string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	for _, s := range schemes {
		if strings.HasPrefix(rawURL, s+"://") {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "URL must use one of the schemes: %s", strings.Join(schemes, ", "))
}
