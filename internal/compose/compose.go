// Package compose turns a constrained markup dialect into Bluesky post
// records: a single-pass scanner over input lines, a facet builder that
// computes byte-offset rich-text annotations, and an embed reconciler that
// merges quote and image attachments into the record's single embed slot.
package compose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blackmichael/bluesky-post/internal/bluesky"
)

// Advisory ceilings checked by Draft.Report. Exceeding them marks the check
// NG but never blocks record construction; the PDS is the authority.
const (
	maxScalars    = 300
	maxImageBytes = 1_000_000
)

// Composer builds post drafts from markup lines. Each Compose call is an
// independent composition: lookups happen inline, in input order, and no
// state is shared across calls.
type Composer struct {
	resolver Resolver
	files    FileReader
	langs    []string
	logger   *slog.Logger
	now      func() time.Time
}

// NewComposer creates a Composer. files may be nil to read attachments from
// the local filesystem. langs is recorded on every composed record.
func NewComposer(resolver Resolver, files FileReader, langs []string, logger *slog.Logger) *Composer {
	if files == nil {
		files = osFileReader{}
	}
	return &Composer{
		resolver: resolver,
		files:    files,
		langs:    langs,
		logger:   logger,
		now:      time.Now,
	}
}

// Draft is a composed post ready for upload: the record plus the resolved
// image attachments whose blobs still need uploading and splicing in.
type Draft struct {
	Record *bluesky.PostRecord
	Images []ImageAttachment
}

// Compose scans the input lines and assembles a fresh post record. Lookup
// failures degrade the affected line (warning logged, no feature or
// directive) rather than aborting the composition.
func (c *Composer) Compose(ctx context.Context, lines []string) *Draft {
	sc := &scanner{resolver: c.resolver, files: c.files, logger: c.logger}
	sc.scanAll(ctx, lines)

	text, facets := buildText(sc.lines)

	record := &bluesky.PostRecord{
		Type:      bluesky.TypePost,
		Text:      text,
		CreatedAt: c.now().UTC().Format(time.RFC3339),
		Langs:     c.langs,
		Facets:    facets,
		Reply:     sc.reply,
	}

	ApplyQuote(record, sc.quote)
	ApplyImages(record, imageRefs(sc.images))

	return &Draft{Record: record, Images: sc.images}
}

// imageRefs builds the embed-side image list for the attachments. Blob refs
// stay nil until SpliceBlobs runs after upload.
func imageRefs(images []ImageAttachment) []bluesky.ImageRef {
	if len(images) == 0 {
		return nil
	}
	refs := make([]bluesky.ImageRef, len(images))
	for i, img := range images {
		refs[i] = bluesky.ImageRef{Alt: img.Alt}
	}
	return refs
}

// SpliceBlobs fills uploaded blob refs into the draft's embed, in attachment
// order. The blob count must match the draft's image list.
func (d *Draft) SpliceBlobs(blobs []*bluesky.BlobRef) error {
	if len(blobs) != len(d.Images) {
		return fmt.Errorf("blob count %d does not match image count %d", len(blobs), len(d.Images))
	}
	if len(blobs) == 0 {
		return nil
	}

	var images *bluesky.ImagesEmbed
	switch embed := d.Record.Embed.(type) {
	case *bluesky.ImagesEmbed:
		images = embed
	case *bluesky.RecordWithMediaEmbed:
		images = &embed.Media
	default:
		return fmt.Errorf("draft has no image embed to splice %d blobs into", len(blobs))
	}

	for i := range images.Images {
		images.Images[i].Image = blobs[i]
	}
	return nil
}

// Report writes the advisory pre-flight summary: the assembled text, the
// scalar-value count against the post length ceiling, and the aggregate
// image size against the upload ceiling, each with an OK/NG marker.
func (d *Draft) Report(w io.Writer) error {
	fmt.Fprintln(w, d.Record.Text)

	count, err := ScalarCount(d.Record.Text)
	if err != nil {
		return fmt.Errorf("count post length: %w", err)
	}
	fmt.Fprintf(w, "%d/%d characters [%s]\n", count, maxScalars, okNG(count <= maxScalars))

	total := 0
	for _, img := range d.Images {
		total += img.Size
	}
	fmt.Fprintf(w, "%d/%d image bytes [%s]\n", total, maxImageBytes, okNG(total <= maxImageBytes))
	return nil
}

func okNG(ok bool) string {
	if ok {
		return "OK"
	}
	return "NG"
}
