package compose

import (
	"github.com/blackmichael/bluesky-post/internal/bluesky"
)

// ApplyQuote reconciles a quote reference into the record's single embed
// slot. The slot is always replaced wholesale with a freshly built shape,
// never mutated in place. A nil quote removes the quote component: a bare
// record embed collapses to no embed, a record-with-media embed collapses to
// its images.
func ApplyQuote(record *bluesky.PostRecord, quote *bluesky.StrongRef) {
	switch embed := record.Embed.(type) {
	case nil:
		if quote != nil {
			record.Embed = bluesky.NewRecordEmbed(*quote)
		}
	case *bluesky.ImagesEmbed:
		if quote != nil {
			record.Embed = bluesky.NewRecordWithMediaEmbed(*quote, embed.Images)
		}
	case *bluesky.RecordEmbed:
		if quote != nil {
			record.Embed = bluesky.NewRecordEmbed(*quote)
		} else {
			record.Embed = nil
		}
	case *bluesky.RecordWithMediaEmbed:
		if quote != nil {
			record.Embed = bluesky.NewRecordWithMediaEmbed(*quote, embed.Media.Images)
		} else {
			record.Embed = bluesky.NewImagesEmbed(embed.Media.Images)
		}
	}
}

// ApplyImages mirrors ApplyQuote with the roles of quote and images swapped.
// Applying both a quote and images from an empty slot yields a
// record-with-media embed regardless of call order.
func ApplyImages(record *bluesky.PostRecord, images []bluesky.ImageRef) {
	switch embed := record.Embed.(type) {
	case nil:
		if len(images) > 0 {
			record.Embed = bluesky.NewImagesEmbed(images)
		}
	case *bluesky.RecordEmbed:
		if len(images) > 0 {
			record.Embed = bluesky.NewRecordWithMediaEmbed(embed.Record, images)
		}
	case *bluesky.ImagesEmbed:
		if len(images) > 0 {
			record.Embed = bluesky.NewImagesEmbed(images)
		} else {
			record.Embed = nil
		}
	case *bluesky.RecordWithMediaEmbed:
		if len(images) > 0 {
			record.Embed = bluesky.NewRecordWithMediaEmbed(embed.Record.Record, images)
		} else {
			record.Embed = bluesky.NewRecordEmbed(embed.Record.Record)
		}
	}
}
