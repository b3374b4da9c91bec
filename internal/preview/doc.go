// Package preview drives the generate → preview → approve/regenerate/cancel
// workflow for AI-authored drafts, with a bounded process-wide memory of
// confirmed preview ids so approve is idempotent under retries.
package preview
