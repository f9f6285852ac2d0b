// Package validation provides centralized input validation logic.
//
// Every upload source and declared MIME type is checked here before any
// network traffic happens, so a batch can reject a bad job at enqueue time
// rather than mid-flight.
package validation

import (
	"mime"
	"os"
	"strings"
	"unicode"

	"github.com/nimbusfs/uplink/errors"
)

// ValidateMimeType validates that a declared MIME type is syntactically
// well formed. An empty type is fine; the server will sniff one.
// Returns ErrBadMimeType when the type cannot be parsed.
func ValidateMimeType(mimeType string) error {
	if mimeType == "" {
		return nil
	}
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return errors.NewError("validateMimeType", errors.ErrBadMimeType).
			WithMessage(mimeType)
	}
	if !strings.Contains(parsed, "/") {
		return errors.NewError("validateMimeType", errors.ErrBadMimeType).
			WithMessage(mimeType)
	}
	return nil
}

// ValidateSourceFile validates that path names a readable regular file and
// returns its size.
func ValidateSourceFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.NewError("validateSource", err)
	}
	if info.IsDir() {
		return 0, errors.NewError("validateSource", errors.ErrInvalidInput).
			WithMessage("source is a directory")
	}

	// Stat can succeed where open would not; probe readability up front.
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.NewError("validateSource", err)
	}
	f.Close()

	return info.Size(), nil
}

// ValidateObjectKey validates an object key. Keys are optional, but when
// present they must be valid UTF-8 without control characters and at most
// 750 bytes, which is the service-side key limit.
func ValidateObjectKey(key string) error {
	if key == "" {
		return nil
	}
	if len(key) > 750 {
		return errors.NewError("validateObjectKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage("object key exceeds 750 bytes")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return errors.NewError("validateObjectKey", errors.ErrInvalidInput).
				WithKey(key).
				WithMessage("object key contains control characters")
		}
	}
	return nil
}
