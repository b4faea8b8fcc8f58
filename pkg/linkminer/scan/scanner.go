package scan

import (
	"strings"
	"unicode"

	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
)

// Mode selects how strictly spans are filtered
type Mode int

const (
	// DocumentMode drops stopwords and keeps spans whose link
	// probability is at least the minimum.
	DocumentMode Mode = iota
	// ContextMode keeps every span whose link probability is strictly
	// above the minimum; it is used to gather context evidence.
	ContextMode
)

// Stoplist reports phrases that must never become mentions
type Stoplist interface {
	IsStop(phrase string) bool
}

// Options configures a Scanner
type Options struct {
	MaxAnchorLength    int
	MinLinkProbability float64
	Stopwords          Stoplist
}

// Scanner finds every span of a text that could name a concept.
type Scanner struct {
	opts Options
}

// New creates a scanner.
func New(opts Options) *Scanner {
	if opts.MaxAnchorLength <= 0 {
		opts.MaxAnchorLength = 20
	}
	return &Scanner{opts: opts}
}

// MaxAnchorLength returns the longest span considered, in tokens.
func (s *Scanner) MaxAnchorLength() int { return s.opts.MaxAnchorLength }

// isBoundary matches the ASCII delimiters between tokens. Bytes of
// multi-byte UTF-8 sequences are never boundaries.
func isBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v',
		'{', '}', '(', ')', '"', '\'', '.', ',', ';', ':', '-', '_':
		return true
	}
	return false
}

// Scan returns candidate references in text, ordered by start offset and
// then by descending length. Offsets are byte offsets into text. Anchors
// are resolved through anchors, so repeated phrases share one Anchor.
func (s *Scanner) Scan(text string, anchors *annotate.AnchorCache, mode Mode) []annotate.TopicReference {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// The sentinels guarantee a boundary before the first and after the
	// last token.
	padded := "$ " + text + " $"

	var boundaries []int
	for i := 0; i < len(padded); i++ {
		if isBoundary(padded[i]) {
			boundaries = append(boundaries, i)
		}
	}

	var refs []annotate.TopicReference
	for i := range boundaries {
		start := boundaries[i] + 1
		if start >= len(padded) || isSpace(padded[start]) {
			continue
		}

		last := i + s.opts.MaxAnchorLength
		if last > len(boundaries)-1 {
			last = len(boundaries) - 1
		}
		for j := last; j > i; j-- {
			end := boundaries[j]
			ngram := padded[start:end]
			if !s.keep(padded, start, ngram, mode) {
				continue
			}

			a := anchors.Lookup(ngram)
			if len(a.Senses) == 0 || !s.linkable(a.LinkProbability(), mode) {
				continue
			}

			refs = append(refs, annotate.TopicReference{
				Anchor:   a,
				Position: annotate.Position{Start: start - 2, End: end - 2},
			})
		}
	}
	return refs
}

func (s *Scanner) keep(padded string, start int, ngram string, mode Mode) bool {
	if len(ngram) == 1 && padded[start-1] == '\'' {
		return false
	}
	if strings.TrimSpace(ngram) == "" {
		return false
	}
	if mode == DocumentMode && s.opts.Stopwords != nil && s.opts.Stopwords.IsStop(strings.ToLower(ngram)) {
		return false
	}
	return true
}

func (s *Scanner) linkable(p float64, mode Mode) bool {
	if mode == ContextMode {
		return p > s.opts.MinLinkProbability
	}
	return p >= s.opts.MinLinkProbability
}

func isSpace(b byte) bool {
	return b < unicode.MaxASCII && unicode.IsSpace(rune(b))
}

// Confident filters references down to the distinct anchors that can
// serve as context evidence.
func Confident(refs []annotate.TopicReference, minSenseProb float64) []*annotate.Anchor {
	seen := make(map[*annotate.Anchor]bool)
	var out []*annotate.Anchor
	for _, r := range refs {
		if r.Anchor == nil || seen[r.Anchor] {
			continue
		}
		seen[r.Anchor] = true
		if r.Anchor.Confident(minSenseProb) {
			out = append(out, r.Anchor)
		}
	}
	return out
}
