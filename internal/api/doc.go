// Package api implements the HTTP client for the Parlor backend: agent
// lookup, idempotent conversation creation, transcript fetch, the streamed
// reply endpoint, and the preview generate/confirm/cancel calls.
package api
