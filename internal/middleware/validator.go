package middleware

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// MaxMessageRunes bounds a single user message.
const MaxMessageRunes = 4000

// ValidateCategory parses a category path segment.
func ValidateCategory(raw string) (findings.Category, error) {
	c, ok := findings.ParseCategory(strings.TrimSpace(raw))
	if !ok {
		return "", fmt.Errorf("invalid category: %q", raw)
	}
	return c, nil
}

// ValidateThreadID requires a UUID as issued by thread creation.
func ValidateThreadID(id string) error {
	if id == "" {
		return fmt.Errorf("thread ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid thread ID format")
	}
	return nil
}

// ValidateMessage sanitizes a user message and enforces its length.
func ValidateMessage(msg string) (string, error) {
	msg = SanitizeString(msg)
	if msg == "" {
		return "", fmt.Errorf("message cannot be empty")
	}
	if utf8.RuneCountInString(msg) > MaxMessageRunes {
		return "", fmt.Errorf("message exceeds %d characters", MaxMessageRunes)
	}
	return msg, nil
}

// ValidatePath validates scan target paths handed to the scanner container.
func ValidatePath(path string) error {
	if path == "" {
		return nil // Optional field
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("path traversal detected")
	}

	blocked := []string{"/etc", "/proc", "/sys", "/dev", "/boot"}
	for _, b := range blocked {
		if cleaned == b || strings.HasPrefix(cleaned, b+"/") {
			return fmt.Errorf("access to %s is not allowed", b)
		}
	}

	dangerous := []string{"$(", "`", "&", "|", ";", "\n", "\r"}
	for _, d := range dangerous {
		if strings.Contains(path, d) {
			return fmt.Errorf("invalid characters in path")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	// buang control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
