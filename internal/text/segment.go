package text

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SentencesPerParagraph is the maximum number of sentences grouped into one
// paragraph. Only the final paragraph of a document may hold fewer.
const SentencesPerParagraph = 4

var ErrMalformedEncoding = errors.New("text is not valid UTF-8")

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Paragraph is a contiguous run of sentences. Text is the exact source slice,
// trailing whitespace included.
type Paragraph struct {
	Index     int
	Span      Span
	Sentences []Span
	Text      string
}

// Display returns the paragraph text without surrounding whitespace.
func (p Paragraph) Display() string {
	return strings.TrimSpace(p.Text)
}

// Options tunes sentence boundary detection.
type Options struct {
	// Abbreviations suppresses boundaries after known abbreviations such as
	// "Dr." or "e.g." and after single-letter initials.
	Abbreviations bool
}

// Segment splits src into paragraphs of up to SentencesPerParagraph sentences.
//
// A sentence ends at a run of '.', '!' or '?' (optionally followed by closing
// quotes or brackets) that is followed by whitespace or the end of input. The
// whitespace after a terminator belongs to the sentence it closes, so the
// returned spans partition src with no gaps or overlaps. Text that contains
// only whitespace has no paragraphs.
func Segment(src string, opts Options) ([]Paragraph, error) {
	if !utf8.ValidString(src) {
		return nil, ErrMalformedEncoding
	}
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}

	sentences := splitSentences(src, opts)
	paragraphs := make([]Paragraph, 0, (len(sentences)+SentencesPerParagraph-1)/SentencesPerParagraph)
	for i := 0; i < len(sentences); i += SentencesPerParagraph {
		end := min(i+SentencesPerParagraph, len(sentences))
		group := append([]Span(nil), sentences[i:end]...)
		span := Span{Start: group[0].Start, End: group[len(group)-1].End}
		paragraphs = append(paragraphs, Paragraph{
			Index:     len(paragraphs),
			Span:      span,
			Sentences: group,
			Text:      src[span.Start:span.End],
		})
	}
	return paragraphs, nil
}

func splitSentences(src string, opts Options) []Span {
	var spans []Span
	start := 0
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		if !isTerminal(r) {
			i += size
			continue
		}

		end := i + size
		for end < len(src) {
			next, n := utf8.DecodeRuneInString(src[end:])
			if !isTerminal(next) && !isCloser(next) {
				break
			}
			end += n
		}

		if end < len(src) {
			next, _ := utf8.DecodeRuneInString(src[end:])
			if !unicode.IsSpace(next) {
				i = end
				continue
			}
		}

		if opts.Abbreviations && r == '.' && !isBoundaryPeriod(src, i, end) {
			i = end
			continue
		}

		for end < len(src) {
			next, n := utf8.DecodeRuneInString(src[end:])
			if !unicode.IsSpace(next) {
				break
			}
			end += n
		}

		spans = append(spans, Span{Start: start, End: end})
		start = end
		i = end
	}

	if start < len(src) {
		spans = append(spans, Span{Start: start, End: len(src)})
	}
	return spans
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '’', '”', '»':
		return true
	default:
		return false
	}
}
