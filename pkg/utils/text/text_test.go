package text_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/utils/text"
)

func TestTruncate(t *testing.T) {
	gt.Value(t, text.Truncate("short", 200)).Equal("short")
	gt.Value(t, text.Truncate("abcdefghij", 8)).Equal("abcde...")
	gt.Value(t, text.Truncate("abcdefghij", 2)).Equal("...")
}

func TestHashContentStable(t *testing.T) {
	a := text.HashContent("hello world")
	b := text.HashContent("hello world")
	gt.Value(t, a).Equal(b)
	gt.Value(t, len(a)).Equal(64)

	c := text.HashContent("hello there")
	gt.Value(t, a).NotEqual(c)
}
