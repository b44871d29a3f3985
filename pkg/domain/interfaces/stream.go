package interfaces

import (
	"context"
)

// Row is a uniform decoded record shape for a single stream row: column
// name to typed value, matching whatever the underlying driver produced.
type Row map[string]any

// RowIter is a lazy, cancelable, single-consumer sequence of rows produced
// by a tail. The producer must not advance past what the consumer has
// accepted (backpressure); callers must call Close when done.
type RowIter interface {
	// Next blocks until a row is available, ctx is canceled, or the tail
	// fails. ok is false when the iterator is exhausted or closed.
	Next(ctx context.Context) (row Row, ok bool, err error)
	Close() error
}

// SeekDirective selects where a tail begins reading from.
type SeekDirective struct {
	// Mode is one of "latest", "earliest", "timestamp", or "relative".
	Mode string
	// At is the absolute UTC timestamp used when Mode == "timestamp".
	At int64
	// Ago is the duration expression used when Mode == "relative", e.g. "5m".
	Ago string
}

// SeekLatest starts a tail at the most recent event-time.
func SeekLatest() SeekDirective { return SeekDirective{Mode: "latest"} }

// SeekEarliest starts a tail at the oldest retained event-time.
func SeekEarliest() SeekDirective { return SeekDirective{Mode: "earliest"} }

// Client is the stream substrate contract shared by every component that
// talks to the streaming database: fire-and-forget execution, bounded
// historical queries, unbounded tailing, and the batch write path.
type Client interface {
	// Execute runs a fire-and-forget DDL/DML statement.
	Execute(ctx context.Context, statement string) error

	// Query runs a bounded historical read and returns a fully-materialized
	// sequence of rows.
	Query(ctx context.Context, statement string) ([]Row, error)

	// Tail starts an unbounded streaming read of statement, beginning at
	// seek. The returned RowIter owns a dedicated transport connection.
	Tail(ctx context.Context, statement string, seek SeekDirective) (RowIter, error)

	// Insert appends rows to the named stream through the batch path.
	Insert(ctx context.Context, stream string, rows []Row) error

	// Ping verifies connectivity to the streaming database.
	Ping(ctx context.Context) error

	// Close releases all connections held by the client.
	Close() error
}
