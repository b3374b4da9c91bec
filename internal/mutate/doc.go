// Package mutate provides the optimistic-update pattern used for
// single-field toggles like like/unlike and pin/unpin: apply locally,
// call the server, roll back to the snapshot on failure.
package mutate
