package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
)

func TestClientInsertAndQuery(t *testing.T) {
	c := local.New()
	ctx := context.Background()

	err := c.Insert(ctx, "messages", []interfaces.Row{
		{"id": "1", "text": "hello"},
		{"id": "2", "text": "world"},
	})
	gt.NoError(t, err).Required()

	rows, err := c.Query(ctx, "SELECT * FROM table(messages)")
	gt.NoError(t, err).Required()
	gt.Array(t, rows).Length(2)
}

func TestClientTailSeesLiveInserts(t *testing.T) {
	c := local.New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	iter, err := c.Tail(ctx, "SELECT * FROM table(messages)", interfaces.SeekLatest())
	gt.NoError(t, err).Required()
	defer iter.Close()

	go func() {
		_ = c.Insert(context.Background(), "messages", []interfaces.Row{{"id": "1"}})
	}()

	row, ok, err := iter.Next(ctx)
	gt.NoError(t, err).Required()
	gt.True(t, ok)
	gt.Value(t, row["id"]).Equal("1")
}

func TestClientTailEarliestReplaysBacklog(t *testing.T) {
	c := local.New()
	ctx := context.Background()

	gt.NoError(t, c.Insert(ctx, "events", []interfaces.Row{{"id": "1"}})).Required()

	iter, err := c.Tail(ctx, "SELECT * FROM table(events)", interfaces.SeekEarliest())
	gt.NoError(t, err).Required()
	defer iter.Close()

	row, ok, err := iter.Next(ctx)
	gt.NoError(t, err).Required()
	gt.True(t, ok)
	gt.Value(t, row["id"]).Equal("1")
}

func TestClientCloseStopsOperations(t *testing.T) {
	c := local.New()
	gt.NoError(t, c.Close()).Required()

	err := c.Insert(context.Background(), "messages", []interfaces.Row{{"id": "1"}})
	gt.Error(t, err)
}
