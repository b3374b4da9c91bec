// ABOUTME: Error taxonomy for backend calls
// ABOUTME: Distinguishes auth failures, non-success responses and consumed previews

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrPreviewGone is returned by ConfirmPreview when the server reports the
// preview no longer exists. Callers treat this as evidence the preview was
// already consumed; see the workflow's idempotent confirm handling.
var ErrPreviewGone = errors.New("preview no longer exists")

// StatusError is a non-success HTTP response from the backend. The body is
// retained (truncated) so the failure can be surfaced with context.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err is a not-found-class failure.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusNotFound
	}
	return errors.Is(err, ErrPreviewGone)
}
