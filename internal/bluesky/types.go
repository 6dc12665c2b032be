package bluesky

// AT Protocol $type NSIDs used by this client.
const (
	TypePost             = "app.bsky.feed.post"
	TypeFacetLink        = "app.bsky.richtext.facet#link"
	TypeFacetMention     = "app.bsky.richtext.facet#mention"
	TypeFacetTag         = "app.bsky.richtext.facet#tag"
	TypeEmbedImages      = "app.bsky.embed.images"
	TypeEmbedRecord      = "app.bsky.embed.record"
	TypeEmbedRecordMedia = "app.bsky.embed.recordWithMedia"
)

// StrongRef is a reference to a specific version of a record.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// ReplyRefs contains references to the parent and root of a reply chain.
type ReplyRefs struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}

// Feature is one rich-text annotation carried by a facet. Exactly one of
// URI, DID, or Tag is set, selected by Type.
type Feature struct {
	Type string `json:"$type"`
	URI  string `json:"uri,omitempty"`
	DID  string `json:"did,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// LinkFeature annotates a span as a hyperlink.
func LinkFeature(uri string) Feature { return Feature{Type: TypeFacetLink, URI: uri} }

// MentionFeature annotates a span as a mention of the given DID.
func MentionFeature(did string) Feature { return Feature{Type: TypeFacetMention, DID: did} }

// TagFeature annotates a span as a hashtag. The tag text excludes the '#'.
func TagFeature(tag string) Feature { return Feature{Type: TypeFacetTag, Tag: tag} }

// ByteSlice is a half-open byte range into a post's UTF-8 text.
type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// Facet annotates a byte range of post text with rich-text features.
type Facet struct {
	Index    ByteSlice `json:"index"`
	Features []Feature `json:"features"`
}

// BlobRef represents an AT Protocol blob reference for uploaded content.
type BlobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// ImageRef is one entry of an images embed. Image is nil until the blob has
// been uploaded and spliced in by the caller.
type ImageRef struct {
	Alt   string   `json:"alt"`
	Image *BlobRef `json:"image"`
}

// Embed is the single embed slot of a post record. It is a sealed sum of
// ImagesEmbed, RecordEmbed, and RecordWithMediaEmbed; a nil Embed means the
// post has no attachment.
type Embed interface {
	embedShape()
}

// ImagesEmbed attaches up to a handful of images to a post.
type ImagesEmbed struct {
	Type   string     `json:"$type"`
	Images []ImageRef `json:"images"`
}

// RecordEmbed attaches a quoted post to a post.
type RecordEmbed struct {
	Type   string    `json:"$type"`
	Record StrongRef `json:"record"`
}

// RecordWithMediaEmbed attaches both a quoted post and images.
type RecordWithMediaEmbed struct {
	Type   string      `json:"$type"`
	Record RecordEmbed `json:"record"`
	Media  ImagesEmbed `json:"media"`
}

func (*ImagesEmbed) embedShape()          {}
func (*RecordEmbed) embedShape()          {}
func (*RecordWithMediaEmbed) embedShape() {}

// NewImagesEmbed builds an images embed with the correct $type tag.
func NewImagesEmbed(images []ImageRef) *ImagesEmbed {
	return &ImagesEmbed{Type: TypeEmbedImages, Images: images}
}

// NewRecordEmbed builds a quote embed with the correct $type tag.
func NewRecordEmbed(ref StrongRef) *RecordEmbed {
	return &RecordEmbed{Type: TypeEmbedRecord, Record: ref}
}

// NewRecordWithMediaEmbed builds a combined quote-plus-images embed.
func NewRecordWithMediaEmbed(ref StrongRef, images []ImageRef) *RecordWithMediaEmbed {
	return &RecordWithMediaEmbed{
		Type:   TypeEmbedRecordMedia,
		Record: *NewRecordEmbed(ref),
		Media:  *NewImagesEmbed(images),
	}
}

// PostRecord is the record body for app.bsky.feed.post.
type PostRecord struct {
	Type      string     `json:"$type"`
	Text      string     `json:"text"`
	CreatedAt string     `json:"createdAt"`
	Langs     []string   `json:"langs,omitempty"`
	Facets    []Facet    `json:"facets,omitempty"`
	Reply     *ReplyRefs `json:"reply,omitempty"`
	Embed     Embed      `json:"embed,omitempty"`
}

// PostRef is the result of resolving an existing post by handle and record
// key. ReplyRoot is the root of the referenced post's own thread when the
// post is itself a reply, nil otherwise.
type PostRef struct {
	URI       string
	CID       string
	ReplyRoot *StrongRef
}

// Profile is the subset of an actor profile the composer needs.
type Profile struct {
	DID string
}
