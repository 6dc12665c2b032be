package compose

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/blackmichael/bluesky-post/internal/bluesky"
)

type fakeResolver struct {
	profiles map[string]string
	posts    map[string]bluesky.PostRef
}

func (f *fakeResolver) ResolveProfile(_ context.Context, handle string) (*bluesky.Profile, error) {
	did, ok := f.profiles[handle]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return &bluesky.Profile{DID: did}, nil
}

func (f *fakeResolver) ResolvePost(_ context.Context, handle, rkey string) (*bluesky.PostRef, error) {
	ref, ok := f.posts[handle+"/"+rkey]
	if !ok {
		return nil, errors.New("post not found")
	}
	return &ref, nil
}

type fakeFiles map[string][]byte

func (f fakeFiles) ReadBytes(path string) ([]byte, error) {
	data, ok := f[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func testComposer(resolver Resolver, files FileReader, langs []string) *Composer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewComposer(resolver, files, langs, logger)
	c.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestComposePlainText(t *testing.T) {
	c := testComposer(&fakeResolver{}, nil, nil)

	draft := c.Compose(context.Background(), []string{"", "  ", "hello", "world", "", ""})

	if got, want := draft.Record.Text, "hello\nworld\n"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if draft.Record.Facets != nil {
		t.Errorf("facets = %v, want nil", draft.Record.Facets)
	}
	if got, want := draft.Record.CreatedAt, "2026-08-28T12:00:00Z"; got != want {
		t.Errorf("createdAt = %q, want %q", got, want)
	}
	if draft.Record.Type != bluesky.TypePost {
		t.Errorf("$type = %q", draft.Record.Type)
	}
}

func TestComposeInteriorBlankLinesSurvive(t *testing.T) {
	c := testComposer(&fakeResolver{}, nil, nil)

	draft := c.Compose(context.Background(), []string{"one", "", "two"})

	if got, want := draft.Record.Text, "one\n\ntwo\n"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestComposeEndToEnd(t *testing.T) {
	resolver := &fakeResolver{profiles: map[string]string{"alice": "did:plc:abc"}}
	c := testComposer(resolver, nil, []string{"en"})

	draft := c.Compose(context.Background(), []string{"Hello @alice #news <https://x.example>"})

	if got, want := draft.Record.Text, "Hello @alice #news https://x.example\n"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}

	facets := draft.Record.Facets
	if len(facets) != 3 {
		t.Fatalf("got %d facets, want 3: %+v", len(facets), facets)
	}

	want := []struct {
		start, end int
		covers     string
		feature    bluesky.Feature
	}{
		{6, 12, "@alice", bluesky.MentionFeature("did:plc:abc")},
		{13, 18, "#news", bluesky.TagFeature("news")},
		{19, 36, "https://x.example", bluesky.LinkFeature("https://x.example")},
	}
	for i, w := range want {
		f := facets[i]
		if f.Index.ByteStart != w.start || f.Index.ByteEnd != w.end {
			t.Errorf("facet %d range = [%d,%d), want [%d,%d)", i, f.Index.ByteStart, f.Index.ByteEnd, w.start, w.end)
		}
		if len(f.Features) != 1 || f.Features[0] != w.feature {
			t.Errorf("facet %d features = %+v, want %+v", i, f.Features, w.feature)
		}
		if got := draft.Record.Text[f.Index.ByteStart:f.Index.ByteEnd]; got != w.covers {
			t.Errorf("facet %d covers %q, want %q", i, got, w.covers)
		}
	}

	if got := draft.Record.Langs; len(got) != 1 || got[0] != "en" {
		t.Errorf("langs = %v", got)
	}
}

func TestComposeMultibyteOffsets(t *testing.T) {
	c := testComposer(&fakeResolver{}, nil, nil)

	draft := c.Compose(context.Background(), []string{"héllo <https://x>"})

	facets := draft.Record.Facets
	if len(facets) != 1 {
		t.Fatalf("got %d facets, want 1", len(facets))
	}
	// "héllo " is 7 bytes: offsets count bytes, not scalars
	if facets[0].Index.ByteStart != 7 || facets[0].Index.ByteEnd != 7+len("https://x") {
		t.Errorf("range = [%d,%d)", facets[0].Index.ByteStart, facets[0].Index.ByteEnd)
	}
}

func TestComposeReplyAndQuote(t *testing.T) {
	root := bluesky.StrongRef{URI: "at://did:plc:r/app.bsky.feed.post/root22", CID: "bafyroot"}
	resolver := &fakeResolver{posts: map[string]bluesky.PostRef{
		"alice.test/abc234": {URI: "at://did:plc:a/app.bsky.feed.post/abc234", CID: "bafya", ReplyRoot: &root},
		"bob.test/def567":   {URI: "at://did:plc:b/app.bsky.feed.post/def567", CID: "bafyb"},
	}}
	c := testComposer(resolver, nil, nil)

	draft := c.Compose(context.Background(), []string{
		"!@bob.test/def567",
		"!@alice.test/abc234",
		"!>bob.test/def567",
		"replying",
	})

	if got, want := draft.Record.Text, "replying\n"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}

	reply := draft.Record.Reply
	if reply == nil {
		t.Fatal("reply refs missing")
	}
	// last reply directive wins, and the parent's own root is carried over
	if reply.Parent.URI != "at://did:plc:a/app.bsky.feed.post/abc234" {
		t.Errorf("parent = %+v", reply.Parent)
	}
	if reply.Root != root {
		t.Errorf("root = %+v, want %+v", reply.Root, root)
	}

	embed, ok := draft.Record.Embed.(*bluesky.RecordEmbed)
	if !ok {
		t.Fatalf("embed = %#v, want record embed", draft.Record.Embed)
	}
	if embed.Record.CID != "bafyb" {
		t.Errorf("quote = %+v", embed.Record)
	}
}

func TestComposeReplyWithoutRootUsesParent(t *testing.T) {
	resolver := &fakeResolver{posts: map[string]bluesky.PostRef{
		"alice.test/abc234": {URI: "at://did:plc:a/app.bsky.feed.post/abc234", CID: "bafya"},
	}}
	c := testComposer(resolver, nil, nil)

	draft := c.Compose(context.Background(), []string{"!@alice.test/abc234", "hi"})

	reply := draft.Record.Reply
	if reply == nil {
		t.Fatal("reply refs missing")
	}
	if reply.Root != reply.Parent {
		t.Errorf("root = %+v, parent = %+v, want equal", reply.Root, reply.Parent)
	}
}

func TestComposeImagesAndQuoteMerge(t *testing.T) {
	resolver := &fakeResolver{posts: map[string]bluesky.PostRef{
		"bob.test/def567": {URI: "at://did:plc:b/app.bsky.feed.post/def567", CID: "bafyb"},
	}}
	files := fakeFiles{"cat.png": []byte("pngdata"), "dog.jpg": []byte("jpgdata")}
	c := testComposer(resolver, files, nil)

	draft := c.Compose(context.Background(), []string{
		"!>bob.test/def567",
		"![a cat](cat.png)",
		"![a dog](dog.jpg)",
		"look",
	})

	if len(draft.Images) != 2 {
		t.Fatalf("got %d images, want 2", len(draft.Images))
	}
	if draft.Images[0].ContentType != "image/png" || draft.Images[0].Size != 7 {
		t.Errorf("image[0] = %+v", draft.Images[0])
	}

	embed, ok := draft.Record.Embed.(*bluesky.RecordWithMediaEmbed)
	if !ok {
		t.Fatalf("embed = %#v, want record with media", draft.Record.Embed)
	}
	if embed.Record.Record.CID != "bafyb" {
		t.Errorf("quote = %+v", embed.Record.Record)
	}
	if len(embed.Media.Images) != 2 || embed.Media.Images[1].Alt != "a dog" {
		t.Errorf("media = %+v", embed.Media)
	}
}

func TestSpliceBlobs(t *testing.T) {
	files := fakeFiles{"cat.png": []byte("pngdata")}
	c := testComposer(&fakeResolver{}, files, nil)

	draft := c.Compose(context.Background(), []string{"![a cat](cat.png)", "look"})

	blob := &bluesky.BlobRef{Type: "blob", MimeType: "image/png", Size: 7}
	if err := draft.SpliceBlobs([]*bluesky.BlobRef{blob}); err != nil {
		t.Fatal(err)
	}

	embed := draft.Record.Embed.(*bluesky.ImagesEmbed)
	if embed.Images[0].Image != blob {
		t.Errorf("image ref = %+v", embed.Images[0])
	}

	if err := draft.SpliceBlobs(nil); err == nil {
		t.Error("want error on blob count mismatch")
	}
}

func TestReportMarkers(t *testing.T) {
	c := testComposer(&fakeResolver{}, nil, nil)

	var buf bytes.Buffer
	draft := c.Compose(context.Background(), []string{"short"})
	if err := draft.Report(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "short\n") {
		t.Errorf("report missing text: %q", out)
	}
	if !strings.Contains(out, "6/300 characters [OK]") {
		t.Errorf("report = %q", out)
	}
	if !strings.Contains(out, "0/1000000 image bytes [OK]") {
		t.Errorf("report = %q", out)
	}

	buf.Reset()
	long := strings.Repeat("x", 301)
	draft = c.Compose(context.Background(), []string{long})
	if err := draft.Report(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "302/300 characters [NG]") {
		t.Errorf("report = %q", buf.String())
	}
}
