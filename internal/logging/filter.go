// Package logging provides zerolog helpers shared by the CLI and the
// dispatcher, most importantly redaction of credentials before anything
// reaches a log file. Worker processes inherit the operator's environment
// and sometimes echo keys or tokens into their output, so every writer
// that persists log data is wrapped in a FilteringWriter.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue replaces any value recognized as sensitive.
const RedactedValue = "[REDACTED]"

// sensitivePatterns match credential formats commonly seen in worker output.
var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once, reused everywhere
	// Anthropic API keys
	regexp.MustCompile(`sk-ant-api[a-zA-Z0-9_-]+`),

	// OpenAI-style secret keys
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),

	// GitHub tokens (ghp_, gho_, ghu_, ghs_, ghr_)
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),

	// key=value style API key assignments
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`),

	// Bearer tokens and raw Authorization headers
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?[a-zA-Z0-9_-]{20,}["']?`),

	// generic secret assignments
	regexp.MustCompile(`(?i)(secret|password|credential|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`),

	// PEM private key headers
	regexp.MustCompile(`(?i)-----BEGIN[A-Z\s]+PRIVATE KEY-----`),

	// long base64 blobs assigned to token-like names
	regexp.MustCompile(`(?i)(token|auth)\s*[:=]\s*["']?[a-zA-Z0-9+/=]{32,}["']?`),
}

// sensitiveFieldNames are field names whose values are always redacted,
// matched case-insensitively and by substring.
var sensitiveFieldNames = []string{ //nolint:gochecknoglobals // compiled once, reused everywhere
	"api_key",
	"apikey",
	"api-key",
	"auth_token",
	"access_token",
	"refresh_token",
	"password",
	"passwd",
	"secret",
	"credential",
	"credentials",
	"private_key",
	"bearer",
	"authorization",
	"anthropic_api_key",
	"github_token",
}

// ContainsSensitiveData reports whether s matches any credential pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}

	return false
}

// FilterSensitiveValue replaces every credential pattern match in value
// with RedactedValue.
func FilterSensitiveValue(value string) string {
	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}

	return result
}

// IsSensitiveFieldName reports whether fieldName indicates a value that
// must never be logged verbatim.
func IsSensitiveFieldName(fieldName string) bool {
	lowerName := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFieldNames {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}

	return false
}

// RedactIfSensitive returns RedactedValue when the field name marks the
// value as sensitive, otherwise the value with credential patterns filtered.
func RedactIfSensitive(fieldName, value string) string {
	if IsSensitiveFieldName(fieldName) {
		return RedactedValue
	}

	return FilterSensitiveValue(value)
}

// SensitiveDataHook flags log events whose message contains credential
// material. Zerolog hooks cannot rewrite the message itself, so call-site
// filtering via FilterSensitiveValue remains the primary defense and the
// hook marks anything that slipped through.
type SensitiveDataHook struct{}

// NewSensitiveDataHook returns a hook for use with zerolog.Logger.Hook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// FilteringWriter wraps an io.Writer and redacts credential patterns from
// everything written through it. Log file writers are always wrapped so
// secrets in worker output never land on disk.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w with credential redaction.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports the original length so callers
// do not interpret redaction as a short write.
func (fw *FilteringWriter) Write(p []byte) (n int, err error) {
	filtered := FilterSensitiveValue(string(p))
	if _, err = fw.w.Write([]byte(filtered)); err != nil {
		return 0, err
	}

	return len(p), nil
}
