package memory

import (
	"time"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// nowFunc is overridable in tests that need deterministic timestamps.
var nowFunc = func() time.Time { return time.Now().UTC() }

func timeField(row interfaces.Row, key string) time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
