package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks failures where the backend could not be reached at all.
	ErrTransport     = errors.New("backend unreachable")
	ErrRejected      = errors.New("backend rejected request")
	ErrUnauthorized  = errors.New("not authenticated")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrStorage       = errors.New("local storage error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Deferrable reports whether a failed backend write should be parked in the
// offline queue rather than surfaced to the worker. Only transport failures
// qualify; a response from the backend, even an error response, is final.
func Deferrable(err error) bool {
	return err != nil && errors.Is(err, ErrTransport)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
