package schema

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

// RequiredStreams lists every stream name the core depends on.
func RequiredStreams() []string {
	names := make([]string, len(streamDDL))
	for i, s := range streamDDL {
		names[i] = s.Name
	}
	return names
}

// CreateStreams idempotently creates the five core streams. Re-running must
// not error if the streams already exist; any CREATE STREAM IF NOT EXISTS
// failure is returned to the caller wrapped with the stream name (there is
// no separate SchemaMismatch error kind).
func CreateStreams(ctx context.Context, client interfaces.Client) error {
	logging.From(ctx).Info("creating streams")

	for _, s := range streamDDL {
		if err := client.Execute(ctx, s.DDL); err != nil {
			return goerr.Wrap(err, "failed to create stream", goerr.V("stream", s.Name))
		}
		logging.From(ctx).Info("ensured stream exists", "stream", s.Name)
	}

	logging.From(ctx).Info("stream setup complete")
	return nil
}

// DropStreams drops every core stream. Destructive; callers should require
// explicit confirmation before invoking this.
func DropStreams(ctx context.Context, client interfaces.Client) error {
	logging.From(ctx).Warn("dropping all streams")

	for _, name := range RequiredStreams() {
		if err := client.Execute(ctx, fmt.Sprintf("DROP STREAM IF EXISTS %s", name)); err != nil {
			logging.From(ctx).Warn("could not drop stream", "stream", name, "error", err)
			continue
		}
		logging.From(ctx).Info("dropped stream", "stream", name)
	}
	return nil
}

// VerifyStreams reports, per required stream, whether it exists and (when
// it holds at least one row) whether every documented column is present.
// A stream missing a required column gets an error listing the missing
// columns; there is no separate SchemaMismatch error kind.
func VerifyStreams(ctx context.Context, client interfaces.Client) (map[string]error, error) {
	results := make(map[string]error, len(streamDDL))

	for _, s := range streamDDL {
		rows, err := client.Query(ctx, fmt.Sprintf("SELECT * FROM table(%s) LIMIT 1", s.Name))
		if err != nil {
			results[s.Name] = goerr.Wrap(err, "stream not reachable", goerr.V("stream", s.Name))
			continue
		}
		if len(rows) > 0 {
			if missing := missingColumns(rows[0], requiredColumns[s.Name]); len(missing) > 0 {
				results[s.Name] = goerr.New("stream missing required columns", goerr.V("stream", s.Name), goerr.V("missing", missing))
				continue
			}
		}
		results[s.Name] = nil
	}

	return results, nil
}

func missingColumns(row interfaces.Row, required []string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := row[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
