package preprocess

import (
	"regexp"
	"strings"

	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

var (
	wikiHeadingRE  = regexp.MustCompile(`(?m)^(={1,6})[^=\n]+?(={1,6})[ \t]*$`)
	wikiArticleRE  = regexp.MustCompile(`\[\[([^\[\]]+?)\]\]`)
	wikiExternalRE = regexp.MustCompile(`(\[(?:https?|ftp)://[^\s\]]*)[^\]\n]*(\])`)
	wikiHTMLRE     = regexp.MustCompile(`(?is)<!--.*?-->|<ref[^>/]*/>|<ref[^>]*>.*?</ref>|</?[a-zA-Z][^>]*>`)
	wikiFormatRE   = regexp.MustCompile(`'{2,}|__[A-Z]+__`)
	wikiListRE     = regexp.MustCompile(`(?m)^[*#:;]+`)
)

// WikiPreprocessor blanks templates, tables and link markup. Existing
// links are banned and their anchors become context. Headings split
// regions.
type WikiPreprocessor struct {
	Titles TitleResolver
}

// Preprocess implements Preprocessor.
func (p *WikiPreprocessor) Preprocess(markup string) *Document {
	doc := &Document{Format: Wiki, Original: markup, Banned: make(map[int]bool)}
	bl := newBlanker(markup)
	var context []string

	for _, span := range nestedSpans(markup, "{{", "}}") {
		bl.blank(span[0], span[1])
	}
	for _, span := range nestedSpans(markup, "{|", "|}") {
		bl.blank(span[0], span[1])
	}
	for _, m := range wikiHTMLRE.FindAllStringIndex(markup, -1) {
		bl.blank(m[0], m[1])
	}

	// links that contain links are file or image captions
	for _, span := range nestedSpans(markup, "[[", "]]") {
		if strings.Contains(markup[span[0]+2:span[1]-2], "[[") {
			bl.blank(span[0], span[1])
		}
	}
	for _, m := range wikiArticleRE.FindAllStringSubmatchIndex(markup, -1) {
		bl.blank(m[0], m[1])
		l, ok := wikitext.ParseLink(markup[m[2]:m[3]])
		if !ok {
			continue
		}
		context = append(context, l.Anchor)
		if p.Titles != nil {
			if id, ok := p.Titles.TitleToID(l.Target); ok {
				doc.Ban(id)
			}
		}
	}

	for _, m := range wikiExternalRE.FindAllStringSubmatchIndex(markup, -1) {
		bl.blank(m[2], m[3])
		bl.blank(m[4], m[5])
	}
	for _, m := range wikiHeadingRE.FindAllStringSubmatchIndex(markup, -1) {
		bl.blank(m[2], m[3])
		bl.blank(m[4], m[5])
		doc.Regions = append(doc.Regions, RegionTag{Offset: m[0], Kind: RegionSplit})
	}
	for _, m := range wikiFormatRE.FindAllStringIndex(markup, -1) {
		bl.blank(m[0], m[1])
	}
	for _, m := range wikiListRE.FindAllStringIndex(markup, -1) {
		bl.blank(m[0], m[1])
	}

	doc.Preprocessed = bl.String()
	doc.Context = strings.Join(context, "\n")
	return doc
}

// nestedSpans returns the outermost balanced open/close spans of s. An
// unbalanced open marker extends to the end of s.
func nestedSpans(s, open, close string) [][2]int {
	var spans [][2]int
	depth, start := 0, 0
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], open):
			if depth == 0 {
				start = i
			}
			depth++
			i += len(open)
		case depth > 0 && strings.HasPrefix(s[i:], close):
			depth--
			i += len(close)
			if depth == 0 {
				spans = append(spans, [2]int{start, i})
			}
		default:
			i++
		}
	}
	if depth > 0 {
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}
