// Package local provides an in-process stream client standing in for the
// real streaming database, used in tests and local development the same
// way the teacher's pkg/repository/memory stands in for its firestore
// backend.
package local

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// Client is a goroutine-safe, in-memory implementation of interfaces.Client.
// Every stream is an append-only slice; Tail fans out each Insert to
// registered subscribers so callers can exercise tailing without a server.
type Client struct {
	mu          sync.RWMutex
	streams     map[string][]interfaces.Row
	subscribers map[string][]chan interfaces.Row
	closed      bool
}

// New returns an empty local stream client.
func New() *Client {
	return &Client{
		streams:     make(map[string][]interfaces.Row),
		subscribers: make(map[string][]chan interfaces.Row),
	}
}

// Execute is a no-op for the local backend; DDL has no meaning without a
// real schema engine, but callers still expect it to succeed idempotently.
func (c *Client) Execute(ctx context.Context, statement string) error {
	if c.isClosed() {
		return goerr.New("local stream client is closed")
	}
	return nil
}

// streamNameFromStatement extracts the stream this statement targets.
// The local backend accepts either a bare stream name or a minimal
// "SELECT ... FROM table(<stream>) WHERE ..." shape, matching the subset of
// SQL the memory manager and context builder actually issue.
func streamNameFromStatement(statement string) string {
	stmt := strings.TrimSpace(statement)
	if idx := strings.Index(strings.ToLower(stmt), "from table("); idx >= 0 {
		rest := stmt[idx+len("from table("):]
		if end := strings.Index(rest, ")"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(strings.ToLower(stmt), "from "); idx >= 0 {
		rest := strings.TrimSpace(stmt[idx+len("from "):])
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			return strings.TrimSpace(fields[0])
		}
	}
	return stmt
}

// Query returns a snapshot copy of every row currently stored for the
// stream named by statement. WHERE and ORDER BY clauses are ignored;
// filtering and ordering are the caller's responsibility (the memory
// manager and message log issue unfiltered selects and filter in Go).
func (c *Client) Query(ctx context.Context, statement string) ([]interfaces.Row, error) {
	if c.isClosed() {
		return nil, goerr.New("local stream client is closed")
	}
	name := streamNameFromStatement(statement)

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows := c.streams[name]
	out := make([]interfaces.Row, len(rows))
	copy(out, rows)
	return out, nil
}

// All returns every row currently stored for stream, without parsing SQL.
// Tests use this instead of round-tripping through Query's
// statement-sniffing.
func (c *Client) All(stream string) []interfaces.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := c.streams[stream]
	out := make([]interfaces.Row, len(rows))
	copy(out, rows)
	return out
}

// Insert appends rows to stream and fans them out to any active tails.
func (c *Client) Insert(ctx context.Context, stream string, rows []interfaces.Row) error {
	if c.isClosed() {
		return goerr.New("local stream client is closed")
	}
	c.mu.Lock()
	c.streams[stream] = append(c.streams[stream], rows...)
	subs := append([]chan interfaces.Row{}, c.subscribers[stream]...)
	c.mu.Unlock()

	for _, row := range rows {
		for _, sub := range subs {
			select {
			case sub <- row:
			case <-time.After(time.Second):
				// slow subscriber; drop rather than block the writer.
			}
		}
	}
	return nil
}

// Tail starts an in-process subscription to stream. seek.Mode == "earliest"
// replays everything stored so far before switching to live fan-out;
// "latest" (the default) only sees rows inserted after Tail is called.
func (c *Client) Tail(ctx context.Context, statement string, seek interfaces.SeekDirective) (interfaces.RowIter, error) {
	if c.isClosed() {
		return nil, goerr.New("local stream client is closed")
	}
	stream := streamNameFromStatement(statement)
	ch := make(chan interfaces.Row, 64)

	c.mu.Lock()
	var backlog []interfaces.Row
	if seek.Mode == "earliest" {
		backlog = append(backlog, c.streams[stream]...)
	}
	c.subscribers[stream] = append(c.subscribers[stream], ch)
	c.mu.Unlock()

	return &rowIter{
		client:  c,
		stream:  stream,
		ch:      ch,
		backlog: backlog,
	}, nil
}

func (c *Client) unsubscribe(stream string, ch chan interfaces.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subscribers[stream]
	for i, s := range subs {
		if s == ch {
			c.subscribers[stream] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Ping always succeeds for the local backend.
func (c *Client) Ping(ctx context.Context) error {
	if c.isClosed() {
		return goerr.New("local stream client is closed")
	}
	return nil
}

// Close marks the client closed; further operations fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, subs := range c.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	c.subscribers = map[string][]chan interfaces.Row{}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

type rowIter struct {
	client  *Client
	stream  string
	ch      chan interfaces.Row
	backlog []interfaces.Row
	once    sync.Once
}

func (it *rowIter) Next(ctx context.Context) (interfaces.Row, bool, error) {
	if len(it.backlog) > 0 {
		row := it.backlog[0]
		it.backlog = it.backlog[1:]
		return row, true, nil
	}
	select {
	case row, ok := <-it.ch:
		return row, ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (it *rowIter) Close() error {
	it.once.Do(func() {
		it.client.unsubscribe(it.stream, it.ch)
	})
	return nil
}

// sortRowsByTimestamp orders rows by their "timestamp" field ascending.
// Nothing in the module calls it.
func sortRowsByTimestamp(rows []interfaces.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, _ := rows[i]["timestamp"].(time.Time)
		tj, _ := rows[j]["timestamp"].(time.Time)
		return ti.Before(tj)
	})
}
