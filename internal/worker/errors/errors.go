// Package workererrors turns print failures into short messages for the UI.
package workererrors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adcondev/pdf-daemon/internal/sumatra"
)

// ExtractUserFriendlyError creates a clean error message for the UI
func ExtractUserFriendlyError(err error) string {
	if err == nil {
		return ""
	}

	var launchErr *sumatra.LaunchError
	switch {
	case errors.As(err, &launchErr):
		return "LAUNCH: SumatraPDF could not be started - check the installation"
	case errors.Is(err, context.Canceled):
		return "CANCELLED: Service is shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		return "CANCELLED: Timed out waiting for a free print slot"
	case errors.Is(err, sumatra.ErrInvalidConcurrency):
		return "CONFIG: Invalid concurrency limit"
	}

	errStr := err.Error()

	// Common error patterns and their friendly messages
	errorMappings := []struct {
		pattern string
		message string
	}{
		{"panic recovered", "INTERNAL: Unexpected error while printing"},
		{"field 'datos.file' is required", "VALIDATION: Missing 'file' field"},
		{"field 'datos' is required", "VALIDATION: Missing 'datos' field"},
		{"timeout_seconds", "VALIDATION: Invalid timeout"},
		{"invalid 'datos'", "JSON: Invalid print request"},
	}

	for _, mapping := range errorMappings {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(mapping.pattern)) {
			return mapping.message
		}
	}

	// Fallback: return cleaned error
	return fmt.Sprintf("ERROR: %s", cleanErrorMessage(errStr))
}

// cleanErrorMessage removes verbose prefixes
func cleanErrorMessage(errStr string) string {
	prefixes := []string{
		"error ejecutando impresión: ",
		"error imprimiendo: ",
	}
	result := errStr
	for _, prefix := range prefixes {
		result = strings.TrimPrefix(result, prefix)
	}
	return result
}
