package diffview

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderEqualWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "same\n", "same\n", false); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("output = %q, want empty", buf.String())
	}
}

func TestRenderInsertion(t *testing.T) {
	before := "a\nb\nc\n"
	after := "a\nb\nb2\nc\n"
	var buf bytes.Buffer
	if err := Render(&buf, before, after, false); err != nil {
		t.Fatal(err)
	}
	want := " a\n b\n+b2\n c\n"
	if buf.String() != want {
		t.Errorf("Render =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestRenderCollapsesContext(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("line\n")
	}
	before := "head\n" + b.String() + "old\n" + b.String()
	after := "head\n" + b.String() + "new\n" + b.String()

	var buf bytes.Buffer
	if err := Render(&buf, before, after, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "-old\n+new\n") {
		t.Errorf("missing change in:\n%s", out)
	}
	if !strings.Contains(out, "@@ 19 unchanged lines @@") {
		t.Errorf("leading context not collapsed:\n%s", out)
	}
	if !strings.Contains(out, "@@ 18 unchanged lines @@") {
		t.Errorf("trailing context not collapsed:\n%s", out)
	}
	if strings.Contains(out, "head") {
		t.Errorf("distant line should be elided:\n%s", out)
	}
}

func TestRenderStripsCR(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "a\r\n", "b\r\n", false); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "-a\n+b\n" {
		t.Errorf("Render = %q", buf.String())
	}
}

func TestRenderColored(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "a\n", "b\n", true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\x1b[31m") || !strings.Contains(buf.String(), "\x1b[32m") {
		t.Errorf("expected ANSI colors, got %q", buf.String())
	}
}

func TestStats(t *testing.T) {
	removed, added := Stats("a\nb\nc\n", "a\nB\nB2\nc\n")
	if removed != 1 || added != 2 {
		t.Errorf("Stats = -%d +%d, want -1 +2", removed, added)
	}
}
