// Package security masks credentials in output and sanitizes free-form
// user input before it reaches a language model.
package security

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "market-dashboard/internal/errors"
)

// MaxTextLength bounds prompts and copilot queries.
const MaxTextLength = 4000

// sensitivePatterns match credentials embedded in free text.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|access[_-]?token|auth[_-]?token|bearer|password)([=:\s]+["']?)([^\s"']+)`),
	regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`), // OpenAI keys
	regexp.MustCompile(`\b[PA]K[A-Z0-9]{16,}\b`), // Alpaca key ids
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskSensitive masks credentials found anywhere in input.
func MaskSensitive(input string) string {
	result := sensitivePatterns[0].ReplaceAllStringFunc(input, func(match string) string {
		m := sensitivePatterns[0].FindStringSubmatch(match)
		return m[1] + m[2] + MaskCredential(m[3])
	})
	for _, pattern := range sensitivePatterns[1:] {
		result = pattern.ReplaceAllStringFunc(result, MaskCredential)
	}
	return result
}

// ContainsSensitiveData checks if a string contains credential patterns.
func ContainsSensitiveData(input string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// SanitizeText removes control characters except newlines and tabs.
func SanitizeText(text string) string {
	var result strings.Builder
	result.Grow(len(text))
	for _, r := range text {
		if (r >= 32 && r != 127) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateText sanitizes free-form input and enforces the length limit.
func ValidateText(field, text string) (string, error) {
	clean := SanitizeText(text)
	if n := len([]rune(clean)); n > MaxTextLength {
		return "", apperrors.NewValidationError(field, n, fmt.Sprintf("text too long (max %d characters)", MaxTextLength))
	}
	return clean, nil
}
