// Package history is the durable per-conversation transcript cache. On
// session open the cached transcript is shown immediately while a fresh
// fetch runs; the fresh result always wins.
package history
