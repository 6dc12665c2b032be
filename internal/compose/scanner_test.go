package compose

import (
	"context"
	"testing"
)

// scanText runs a full composition and returns only the assembled text, for
// cases that exercise the scanner's literal-versus-feature decisions.
func scanText(t *testing.T, resolver Resolver, lines ...string) string {
	t.Helper()
	c := testComposer(resolver, nil, nil)
	return c.Compose(context.Background(), lines).Record.Text
}

func TestScanInlineLink(t *testing.T) {
	resolver := &fakeResolver{}
	c := testComposer(resolver, nil, nil)

	draft := c.Compose(context.Background(), []string{"see [docs](https://example.com/docs) now"})

	if got, want := draft.Record.Text, "see docs now\n"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
	facets := draft.Record.Facets
	if len(facets) != 1 {
		t.Fatalf("got %d facets, want 1", len(facets))
	}
	if facets[0].Index.ByteStart != 4 || facets[0].Index.ByteEnd != 8 {
		t.Errorf("range = [%d,%d)", facets[0].Index.ByteStart, facets[0].Index.ByteEnd)
	}
	if facets[0].Features[0].URI != "https://example.com/docs" {
		t.Errorf("uri = %q", facets[0].Features[0].URI)
	}
}

func TestScanUnterminatedSpans(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unmatched bracket", "[foo", "[foo\n"},
		{"bracket without uri", "[foo] bar", "[foo] bar\n"},
		{"unmatched angle", "a < b", "a < b\n"},
		{"bare at", "mail @ home", "mail @ home\n"},
		{"bare hash", "issue # 4", "issue # 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testComposer(&fakeResolver{}, nil, nil)
			draft := c.Compose(context.Background(), []string{tt.in})
			if draft.Record.Text != tt.want {
				t.Errorf("text = %q, want %q", draft.Record.Text, tt.want)
			}
			if draft.Record.Facets != nil {
				t.Errorf("facets = %+v, want nil", draft.Record.Facets)
			}
		})
	}
}

func TestScanDigitOnlyTagIsLiteral(t *testing.T) {
	c := testComposer(&fakeResolver{}, nil, nil)

	draft := c.Compose(context.Background(), []string{"#123 #abc"})

	if got, want := draft.Record.Text, "#123 #abc\n"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
	facets := draft.Record.Facets
	if len(facets) != 1 {
		t.Fatalf("got %d facets, want 1: %+v", len(facets), facets)
	}
	if facets[0].Features[0].Tag != "abc" {
		t.Errorf("tag = %q, want %q", facets[0].Features[0].Tag, "abc")
	}
	if facets[0].Index.ByteStart != 5 || facets[0].Index.ByteEnd != 10 {
		t.Errorf("range = [%d,%d)", facets[0].Index.ByteStart, facets[0].Index.ByteEnd)
	}
}

func TestScanMentionFailureKeepsLiteral(t *testing.T) {
	c := testComposer(&fakeResolver{}, nil, nil)

	draft := c.Compose(context.Background(), []string{"hi @nobody there"})

	if got, want := draft.Record.Text, "hi @nobody there\n"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if draft.Record.Facets != nil {
		t.Errorf("facets = %+v, want nil", draft.Record.Facets)
	}
}

func TestDirectiveFallthrough(t *testing.T) {
	resolver := &fakeResolver{}

	// unknown media suffix: the line degrades to a normal scan, where the
	// bracket run parses as an inline link
	if got, want := scanText(t, resolver, "![x](pic.bmp)"), "!x\n"; got != want {
		t.Errorf("unknown suffix text = %q, want %q", got, want)
	}

	// unresolvable reply target: degrades to a failed mention, so the whole
	// line stays literal
	if got, want := scanText(t, resolver, "!@nobody.test/abc234"), "!@nobody.test/abc234\n"; got != want {
		t.Errorf("failed reply text = %q, want %q", got, want)
	}

	// a record key outside the base32 alphabet never matches the directive
	// shape in the first place
	if got, want := scanText(t, resolver, "!@alice.test/ABC918"), "!@alice.test/ABC918\n"; got != want {
		t.Errorf("bad rkey text = %q, want %q", got, want)
	}

	// a handle without a domain dot is not a directive
	if got, want := scanText(t, resolver, "!@alice/abc234"), "!@alice/abc234\n"; got != want {
		t.Errorf("bad handle text = %q, want %q", got, want)
	}
}

func TestDirectiveImageReadFailure(t *testing.T) {
	c := testComposer(&fakeResolver{}, fakeFiles{}, nil)

	draft := c.Compose(context.Background(), []string{"![cat](missing.png)", "text"})

	if len(draft.Images) != 0 {
		t.Errorf("images = %+v, want none", draft.Images)
	}
	// degraded line scans as "!" plus an inline link span
	if got, want := draft.Record.Text, "!cat\ntext\n"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestTokenEndStopsAtTriggersAndSpace(t *testing.T) {
	tests := []struct {
		line  string
		start int
		want  string
	}{
		{"alice.test rest", 0, "alice.test"},
		{"alice#tag", 0, "alice"},
		{"alice@host", 0, "alice"},
		{"alice[0]", 0, "alice"},
		{"alice<br>", 0, "alice"},
	}
	for _, tt := range tests {
		if got := tt.line[tt.start:tokenEnd(tt.line, tt.start)]; got != tt.want {
			t.Errorf("tokenEnd(%q) token = %q, want %q", tt.line, got, tt.want)
		}
	}
}
