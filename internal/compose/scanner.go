package compose

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blackmichael/bluesky-post/internal/bluesky"
)

// Span is one run of output text, optionally annotated with a rich-text
// feature. Feature-less spans are plain literal text.
type Span struct {
	Text    string
	Feature *bluesky.Feature
}

// ImageAttachment is a resolved image directive. Data is held in memory
// until the caller uploads it and splices the resulting blob ref into the
// draft's embed.
type ImageAttachment struct {
	Alt         string
	ContentType string
	Data        []byte
	Size        int
	Path        string
}

// PostResolver resolves existing posts for reply and quote directives.
type PostResolver interface {
	ResolvePost(ctx context.Context, handle, rkey string) (*bluesky.PostRef, error)
}

// ProfileResolver resolves handles for mention spans.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, handle string) (*bluesky.Profile, error)
}

// Resolver is the full lookup capability the scanner needs.
type Resolver interface {
	PostResolver
	ProfileResolver
}

// FileReader reads image attachment bytes. The whole file is read into
// memory; size limits are advisory and enforced by the pre-flight report,
// not here.
type FileReader interface {
	ReadBytes(path string) ([]byte, error)
}

type osFileReader struct{}

func (osFileReader) ReadBytes(path string) ([]byte, error) { return os.ReadFile(path) }

// Line-leading directive patterns. The handle must look like
// label.domain (at least one dot); the record key is the base32-sortable
// alphabet used for AT Protocol rkeys.
var (
	replyDirective = regexp.MustCompile(`^!@([a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)+)/([2-7a-z]+)$`)
	quoteDirective = regexp.MustCompile(`^!>([a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)+)/([2-7a-z]+)$`)
	imageDirective = regexp.MustCompile(`^!\[([^\]]*)\]\((.+)\)$`)
)

// triggers are the characters that start an annotated span mid-line.
const triggers = "[<@#"

// scanner performs the single left-to-right pass over input lines. It
// accumulates spans grouped by line, plus the reply, quote, and image state
// collected from directives. One scanner serves one composition.
type scanner struct {
	resolver Resolver
	files    FileReader
	logger   *slog.Logger

	lines  [][]Span
	reply  *bluesky.ReplyRefs
	quote  *bluesky.StrongRef
	images []ImageAttachment
}

func (s *scanner) scanAll(ctx context.Context, lines []string) {
	for _, line := range lines {
		if s.tryDirective(ctx, line) {
			continue
		}
		s.scanLine(ctx, line)
	}
}

// tryDirective tests the whole line against the directive patterns. A
// directive whose payload fails to resolve is reported as not-a-directive so
// the line falls through to normal scanning.
func (s *scanner) tryDirective(ctx context.Context, line string) bool {
	if m := replyDirective.FindStringSubmatch(line); m != nil {
		ref, err := s.resolver.ResolvePost(ctx, m[1], m[2])
		if err != nil {
			s.logger.Warn("reply directive failed, keeping line as text", "handle", m[1], "rkey", m[2], "error", err)
			return false
		}
		parent := bluesky.StrongRef{URI: ref.URI, CID: ref.CID}
		root := parent
		if ref.ReplyRoot != nil {
			root = *ref.ReplyRoot
		}
		// last successful reply directive wins
		s.reply = &bluesky.ReplyRefs{Root: root, Parent: parent}
		return true
	}

	if m := quoteDirective.FindStringSubmatch(line); m != nil {
		ref, err := s.resolver.ResolvePost(ctx, m[1], m[2])
		if err != nil {
			s.logger.Warn("quote directive failed, keeping line as text", "handle", m[1], "rkey", m[2], "error", err)
			return false
		}
		s.quote = &bluesky.StrongRef{URI: ref.URI, CID: ref.CID}
		return true
	}

	if m := imageDirective.FindStringSubmatch(line); m != nil {
		alt, path := m[1], m[2]
		contentType, ok := bluesky.MediaTypeForExt(path)
		if !ok {
			s.logger.Warn("unknown media suffix, keeping line as text", "path", path)
			return false
		}
		data, err := s.files.ReadBytes(path)
		if err != nil {
			s.logger.Warn("image read failed, keeping line as text", "path", path, "error", err)
			return false
		}
		s.images = append(s.images, ImageAttachment{
			Alt:         alt,
			ContentType: contentType,
			Data:        data,
			Size:        len(data),
			Path:        path,
		})
		return true
	}

	return false
}

// scanLine splits one non-directive line into literal and annotated spans.
// The cursor only ever moves forward: an unmatched trigger is committed as a
// one-character literal span and scanning resumes just past it.
func (s *scanner) scanLine(ctx context.Context, line string) {
	var spans []Span

	pos := 0
	for pos < len(line) {
		next := strings.IndexAny(line[pos:], triggers)
		if next < 0 {
			spans = append(spans, Span{Text: line[pos:]})
			pos = len(line)
			break
		}
		next += pos
		if next > pos {
			spans = append(spans, Span{Text: line[pos:next]})
		}
		pos = next

		switch line[pos] {
		case '[':
			mid := strings.Index(line[pos:], "](")
			if mid < 0 {
				spans = append(spans, Span{Text: "["})
				pos++
				continue
			}
			mid += pos
			end := strings.IndexByte(line[mid+2:], ')')
			if end < 0 {
				spans = append(spans, Span{Text: "["})
				pos++
				continue
			}
			end += mid + 2
			feature := bluesky.LinkFeature(line[mid+2 : end])
			spans = append(spans, Span{Text: line[pos+1 : mid], Feature: &feature})
			pos = end + 1

		case '<':
			end := strings.IndexByte(line[pos:], '>')
			if end < 0 {
				spans = append(spans, Span{Text: "<"})
				pos++
				continue
			}
			end += pos
			uri := line[pos+1 : end]
			feature := bluesky.LinkFeature(uri)
			spans = append(spans, Span{Text: uri, Feature: &feature})
			pos = end + 1

		case '@':
			end := tokenEnd(line, pos+1)
			if end == pos+1 {
				spans = append(spans, Span{Text: "@"})
				pos++
				continue
			}
			handle := line[pos+1 : end]
			text := line[pos:end]
			profile, err := s.resolver.ResolveProfile(ctx, handle)
			if err != nil {
				s.logger.Warn("mention did not resolve, keeping literal text", "handle", handle, "error", err)
				spans = append(spans, Span{Text: text})
			} else {
				feature := bluesky.MentionFeature(profile.DID)
				spans = append(spans, Span{Text: text, Feature: &feature})
			}
			pos = end

		case '#':
			end := tokenEnd(line, pos+1)
			if end == pos+1 {
				spans = append(spans, Span{Text: "#"})
				pos++
				continue
			}
			tag := line[pos+1 : end]
			if allDigits(tag) {
				// numeric runs like #123 read as ordinals, not topics
				spans = append(spans, Span{Text: line[pos:end]})
			} else {
				feature := bluesky.TagFeature(tag)
				spans = append(spans, Span{Text: line[pos:end], Feature: &feature})
			}
			pos = end
		}
	}

	spans = append(spans, Span{Text: "\n"})
	s.lines = append(s.lines, spans)
}

// tokenEnd returns the byte offset just past the maximal mention/tag token
// starting at start: a run of characters that are neither whitespace nor
// trigger characters.
func tokenEnd(line string, start int) int {
	i := start
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if unicode.IsSpace(r) || strings.ContainsRune(triggers, r) {
			break
		}
		i += size
	}
	return i
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
