package schema_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
	"github.com/timeplus-io/pulsebot/pkg/stream/schema"
)

func TestCreateStreamsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client := local.New()
	defer client.Close()

	gt.NoError(t, schema.CreateStreams(ctx, client)).Required()
	gt.NoError(t, schema.CreateStreams(ctx, client)).Required()
}

func TestRequiredStreamsListsFive(t *testing.T) {
	gt.Array(t, schema.RequiredStreams()).Length(5)
}
