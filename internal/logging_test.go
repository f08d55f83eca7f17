package internal

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := log.New(&buf, "pipehooks/github ", 0)

	WithRequestID(base, "abc123").Printf("hello")
	if !strings.Contains(buf.String(), "pipehooks/github [abc123] hello") {
		t.Fatalf("unexpected log line: %q", buf.String())
	}

	if got := WithRequestID(base, ""); got != base {
		t.Fatalf("expected empty id to return the base logger")
	}
}
