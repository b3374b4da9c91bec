// Package session resolves a target agent and its conversation, streams
// live replies through the decoder, and keeps the transcript caches
// coherent. A per-session epoch counter invalidates stale async work.
package session
