// Package blob abstracts the durable object store that holds transcripts,
// aggregate results, and the append-only journal, memory, and history objects.
//
// The store has no native atomic append. AppendLine is implemented as
// read-modify-write guarded by a version precondition (If-Match on ETag), with
// a bounded retry loop; see the implementations for the exact discipline.
package blob

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/scribe/internal/backoff"
)

// ErrNotFound is returned by Get and Head when the object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// errPrecondition signals a conditional-write failure inside the append loop.
// It never escapes the adapter; exhausted retries surface as errkind.Conflict.
var errPrecondition = errors.New("blob: precondition failed")

// Store is the uniform object-store contract used by every component.
type Store interface {
	// Get fetches an object's full contents. Returns ErrNotFound when absent;
	// not retried.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put overwrites an object. Output objects are overwrite-safe.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// AppendLine appends a line to a text object, creating it if absent. The
	// line gains a trailing newline if it lacks one. Concurrent appends are
	// serialized by the conditional-write loop.
	AppendLine(ctx context.Context, key, line string) error

	// List returns the keys under a prefix. Used only by maintenance
	// utilities, never on the event path.
	List(ctx context.Context, prefix string) ([]string, error)

	// Head checks object existence without fetching the body. Returns
	// ErrNotFound when absent.
	Head(ctx context.Context, key string) error
}

// DefaultAppendRetries bounds the conditional-append loop.
const DefaultAppendRetries = 8

// appendBackoff is the retry policy for conditional-append collisions:
// 50ms base, doubling, ±25% jitter.
var appendBackoff = backoff.Policy{
	Initial: 50 * time.Millisecond,
	Factor:  2,
	Jitter:  0.25,
}

func terminateLine(line string) string {
	if len(line) == 0 || line[len(line)-1] != '\n' {
		return line + "\n"
	}
	return line
}
