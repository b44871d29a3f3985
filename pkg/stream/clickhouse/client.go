// Package clickhouse connects to the streaming database over the
// ClickHouse native wire protocol, which Timeplus Proton also speaks. It is
// the production implementation of interfaces.Client; pkg/stream/local
// stands in for it in tests and local development.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// Config describes how to reach the streaming database.
type Config struct {
	Host       string
	QueryPort  int
	StreamPort int
	Username   string
	Password   string
	Database   string
}

func (cfg Config) withDefaults() Config {
	if cfg.QueryPort == 0 {
		cfg.QueryPort = 8443
	}
	if cfg.StreamPort == 0 {
		cfg.StreamPort = 8463
	}
	return cfg
}

func options(cfg Config, port int) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	}
}

// Client is the production interfaces.Client backed by Timeplus Proton.
type Client struct {
	cfg  Config
	conn driver.Conn
}

// New opens a pooled connection for bounded queries and DDL. Tails open
// their own dedicated connection via Tail so they never head-of-line block
// behind, or get blocked by, batch traffic.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	conn, err := clickhouse.Open(options(cfg, cfg.QueryPort))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open streaming db connection", goerr.V("host", cfg.Host))
	}

	c := &Client{cfg: cfg, conn: conn}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Execute runs a fire-and-forget DDL/DML statement.
func (c *Client) Execute(ctx context.Context, statement string) error {
	if err := c.conn.Exec(ctx, statement); err != nil {
		return goerr.Wrap(err, "failed to execute statement", goerr.V("statement", statement))
	}
	return nil
}

// Query runs a bounded historical read and materializes every row.
func (c *Client) Query(ctx context.Context, statement string) ([]interfaces.Row, error) {
	rows, err := c.conn.Query(ctx, statement)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query stream", goerr.V("statement", statement))
	}
	defer rows.Close()

	return scanRows(rows)
}

// Insert appends rows to stream using a single batched statement built from
// the union of keys seen across rows.
func (c *Client) Insert(ctx context.Context, stream string, rows []interfaces.Row) error {
	if len(rows) == 0 {
		return nil
	}

	cols := columnUnion(rows)
	batch, err := c.conn.PrepareBatch(ctx, buildInsertSQL(stream, cols))
	if err != nil {
		return goerr.Wrap(err, "failed to prepare insert batch", goerr.V("stream", stream))
	}

	for _, row := range rows {
		args := make([]any, len(cols))
		for i, col := range cols {
			args[i] = row[col]
		}
		if err := batch.Append(args...); err != nil {
			return goerr.Wrap(err, "failed to append row", goerr.V("stream", stream))
		}
	}

	if err := batch.Send(); err != nil {
		return goerr.Wrap(err, "failed to send insert batch", goerr.V("stream", stream))
	}
	return nil
}

// Tail opens a dedicated connection and issues a streaming SELECT, pumping
// rows into a channel that Next drains. This mirrors the original Python
// implementation's thread-pool-backed async generator bridging a blocking
// iterator into asyncio, expressed here as a goroutine-and-channel pair.
func (c *Client) Tail(ctx context.Context, statement string, seek interfaces.SeekDirective) (interfaces.RowIter, error) {
	conn, err := clickhouse.Open(options(c.cfg, c.cfg.StreamPort))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open tail connection")
	}

	tailCtx, cancel := context.WithCancel(ctx)
	rows, err := conn.Query(tailCtx, seekStatement(statement, seek))
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, goerr.Wrap(err, "failed to start tail", goerr.V("statement", statement))
	}

	it := &tailIter{
		conn:   conn,
		rows:   rows,
		cancel: cancel,
		out:    make(chan rowOrErr, 64),
	}
	go it.pump()
	return it, nil
}

// seekStatement rewrites statement with a SETTINGS clause expressing the
// seek directive, matching Proton's seek_to query setting.
func seekStatement(statement string, seek interfaces.SeekDirective) string {
	switch seek.Mode {
	case "earliest":
		return statement + " SETTINGS seek_to = 'earliest'"
	case "timestamp":
		return statement + fmt.Sprintf(" SETTINGS seek_to = '%d'", seek.At)
	case "relative":
		return statement + fmt.Sprintf(" SETTINGS seek_to = '%s'", seek.Ago)
	default:
		return statement + " SETTINGS seek_to = 'latest'"
	}
}

type rowOrErr struct {
	row interfaces.Row
	err error
}

type tailIter struct {
	conn   driver.Conn
	rows   driver.Rows
	cancel context.CancelFunc
	out    chan rowOrErr
}

func (it *tailIter) pump() {
	defer close(it.out)
	cols := it.rows.Columns()
	for it.rows.Next() {
		row, err := scanOneRow(it.rows, cols)
		if err != nil {
			it.out <- rowOrErr{err: err}
			return
		}
		it.out <- rowOrErr{row: row}
	}
	if err := it.rows.Err(); err != nil {
		it.out <- rowOrErr{err: goerr.Wrap(err, "tail transport lost")}
	}
}

func (it *tailIter) Next(ctx context.Context) (interfaces.Row, bool, error) {
	select {
	case item, ok := <-it.out:
		if !ok {
			return nil, false, nil
		}
		if item.err != nil {
			return nil, false, item.err
		}
		return item.row, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (it *tailIter) Close() error {
	it.cancel()
	_ = it.rows.Close()
	return it.conn.Close()
}

// Ping verifies connectivity to the streaming database.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return goerr.Wrap(err, "failed to ping streaming db")
	}
	return nil
}

// Close releases the pooled query connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// rowScanner is satisfied by both driver.Rows (bounded queries) and the
// streaming rows handed to the tail pump, so scanOneRow serves both paths.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRows(rows driver.Rows) ([]interfaces.Row, error) {
	cols := rows.Columns()

	var result []interfaces.Row
	for rows.Next() {
		row, err := scanOneRow(rows, cols)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed reading query results")
	}
	return result, nil
}

func scanOneRow(rows rowScanner, cols []string) (interfaces.Row, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, goerr.Wrap(err, "failed to scan row")
	}

	row := make(interfaces.Row, len(cols))
	for i, col := range cols {
		row[col] = values[i]
	}
	return row, nil
}

func columnUnion(rows []interfaces.Row) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func buildInsertSQL(stream string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s)", stream, joinComma(cols))
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
