package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromAddsRunID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithAttrs(ctx, "corpus", "edgar")
	From(ctx, Component(base, "pipeline")).Info("started")

	out := buf.String()
	for _, want := range []string{"component=pipeline", "run_id=run-1", "corpus=edgar"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestFromWithoutAttrsReturnsBase(t *testing.T) {
	t.Parallel()

	base := slog.Default()
	if From(context.Background(), base) != base {
		t.Fatalf("expected base logger when no attrs are stored")
	}
}
