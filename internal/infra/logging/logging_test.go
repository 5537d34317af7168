package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

func TestWith_AttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "t-1")
	ctx = WithCourseID(ctx, "c-9")
	ctx = WithTask(ctx, "syllabus_parse")

	With(ctx, &base).Info().Msg("hello")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	for k, want := range map[string]string{"trace_id": "t-1", "course_id": "c-9", "task": "syllabus_parse"} {
		if got[k] != want {
			t.Errorf("%s = %v, want %s", k, got[k], want)
		}
	}
	if TraceIDFrom(ctx) != "t-1" {
		t.Errorf("TraceIDFrom = %q", TraceIDFrom(ctx))
	}
}

func TestPreviewAndRedact(t *testing.T) {
	if got := Preview("abcdef", 3); got != "abc..." {
		t.Errorf("Preview = %q", got)
	}
	if got := Preview("abc", 10); got != "abc" {
		t.Errorf("Preview short = %q", got)
	}
	for n := 1; n <= 8; n++ {
		if got := Preview("héllo 日本語", n); !utf8.ValidString(got) {
			t.Errorf("Preview(%d) split a rune: %q", n, got)
		}
	}
	if got := Preview("日本語", 4); got != "日..." {
		t.Errorf("Preview multibyte = %q", got)
	}
	if got := Redact("gsk_1234567890", false); got != "gsk_...90" {
		t.Errorf("Redact = %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("Redact short = %q", got)
	}
	if got := Redact("visible", true); got != "visible" {
		t.Errorf("Redact dev = %q", got)
	}
}
