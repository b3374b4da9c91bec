// Package auth resolves the session bearer token used for all backend
// requests, failing distinctly when no usable session exists.
package auth
