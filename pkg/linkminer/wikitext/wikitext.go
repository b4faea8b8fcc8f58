// Package wikitext cleans wiki markup down to prose and article links,
// and extracts the links themselves.
package wikitext

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

// SnippetMode selects how much of an article is used
type SnippetMode int

const (
	// All uses the whole article body.
	All SnippetMode = iota
	// FirstSentence uses the opening sentences, at least 30 bytes worth.
	FirstSentence
	// FirstParagraph uses the first paragraph of prose.
	FirstParagraph
)

func (m SnippetMode) String() string {
	switch m {
	case FirstSentence:
		return "first_sentence"
	case FirstParagraph:
		return "first_paragraph"
	default:
		return "all"
	}
}

// ParseSnippetMode parses the String form of a mode. Unknown names map
// to All.
func ParseSnippetMode(s string) SnippetMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first_sentence", "sentence":
		return FirstSentence
	case "first_paragraph", "paragraph":
		return FirstParagraph
	default:
		return All
	}
}

// Link is an article link found in markup
type Link struct {
	Target string // destination title, first letter upper-cased
	Anchor string // text shown for the link
}

var (
	linkRE       = regexp.MustCompile(`\[\[([^\[\]]+?)\]\]`)
	headingRE    = regexp.MustCompile(`(?m)^(={2,})[ \t]*(.+?)[ \t]*={2,}[ \t]*$`)
	externalRE   = regexp.MustCompile(`\[(?:https?|ftp)://[^\s\]]+[ \t]*([^\]]*)\]`)
	commentRE    = regexp.MustCompile(`(?s)<!--.*?-->`)
	refRE        = regexp.MustCompile(`(?is)<ref[^>/]*/>|<ref[^>]*>.*?</ref>`)
	tagRE        = regexp.MustCompile(`(?s)</?[a-zA-Z][^>]*>`)
	magicRE      = regexp.MustCompile(`__[A-Z]+__`)
	formatRE     = regexp.MustCompile(`'{2,}`)
	newlinesRE   = regexp.MustCompile(`\n{3,}`)
	listItemRE   = regexp.MustCompile(`(?m)^[*#;:].*$`)
	interlangRE  = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]+)?$`)
	namespaceSet = map[string]bool{
		"category": true, "file": true, "image": true, "media": true,
		"template": true, "wikipedia": true, "help": true, "portal": true,
		"user": true, "talk": true, "special": true, "wiktionary": true,
	}
	droppedSections = []string{"see also", "references", "external links", "further reading"}
)

// Links returns the article links of markup in order of appearance.
// For piped links the destination is everything before the last '|'.
func Links(markup string) []Link {
	var links []Link
	for _, m := range linkRE.FindAllStringSubmatch(markup, -1) {
		if l, ok := ParseLink(m[1]); ok {
			links = append(links, l)
		}
	}
	return links
}

// ParseLink parses the text between the brackets of a link. Links to
// categories, files and other namespaces are rejected.
func ParseLink(inner string) (Link, bool) {
	target, anchor := inner, inner
	if i := strings.LastIndexByte(inner, '|'); i >= 0 {
		target, anchor = inner[:i], inner[i+1:]
	}
	if isNamespaced(target) {
		return Link{}, false
	}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimSpace(strings.ReplaceAll(target, "_", " "))
	anchor = strings.TrimSpace(anchor)
	if target == "" || anchor == "" {
		return Link{}, false
	}
	return Link{Target: Capitalize(target), Anchor: anchor}, true
}

func isNamespaced(target string) bool {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, ":") {
		return true
	}
	i := strings.IndexByte(target, ':')
	if i <= 0 {
		return false
	}
	prefix := strings.ToLower(strings.TrimSpace(target[:i]))
	return namespaceSet[prefix] || interlangRE.MatchString(prefix)
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// StripLinks replaces every link by its anchor text.
func StripLinks(markup string) string {
	return linkRE.ReplaceAllStringFunc(markup, func(m string) string {
		inner := m[2 : len(m)-2]
		if i := strings.LastIndexByte(inner, '|'); i >= 0 {
			return inner[i+1:]
		}
		return inner
	})
}

// LinksOnly returns the requested portion of an article with every kind
// of markup removed except links to other articles.
func LinksOnly(markup string, mode SnippetMode) string {
	switch mode {
	case FirstParagraph:
		return stripFormatting(firstParagraph(markup))
	case FirstSentence:
		return stripFormatting(firstSentences(firstParagraph(markup)))
	}

	content := stripNested(markup, "{{", "}}")
	for _, section := range droppedSections {
		content = stripSection(content, section)
	}
	content = stripHeadings(content)
	content = stripNonArticleLinks(content)
	content = externalRE.ReplaceAllString(content, "$1")
	content = stripNested(content, "{|", "|}")
	content = stripHTML(content)
	content = magicRE.ReplaceAllString(content, "")
	content = stripFormatting(content)
	return strings.TrimSpace(newlinesRE.ReplaceAllString(content, "\n\n"))
}

// Clean returns the requested portion of an article as plain text.
func Clean(markup string, mode SnippetMode) string {
	return StripLinks(LinksOnly(markup, mode))
}

func firstParagraph(markup string) string {
	content := headingRE.ReplaceAllString(markup, "\n")
	content = stripNested(content, "{{", "}}")
	content = stripNonArticleLinks(content)
	content = externalRE.ReplaceAllString(content, "$1")
	content = stripNested(content, "{|", "|}")
	content = stripHTML(content)
	content = magicRE.ReplaceAllString(content, "")
	content = listItemRE.ReplaceAllString(content, "")

	for _, para := range strings.Split(content, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			return para
		}
	}
	return ""
}

// firstSentences returns leading sentences of paragraph until more than
// 30 bytes have been collected.
func firstSentences(paragraph string) string {
	if paragraph == "" {
		return ""
	}
	doc, err := prose.NewDocument(paragraph,
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		return paragraph
	}

	var sb strings.Builder
	for _, s := range doc.Sentences() {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(s.Text))
		if sb.Len() > 30 {
			break
		}
	}
	return sb.String()
}

func stripFormatting(s string) string {
	return formatRE.ReplaceAllString(s, "")
}

func stripHTML(s string) string {
	s = commentRE.ReplaceAllString(s, "")
	s = refRE.ReplaceAllString(s, "")
	return tagRE.ReplaceAllString(s, "")
}

// stripHeadings keeps heading titles as plain lines.
func stripHeadings(s string) string {
	return headingRE.ReplaceAllString(s, "$2")
}

// stripSection removes a section titled name, up to the next heading of
// the same or a higher level.
func stripSection(s, name string) string {
	matches := headingRE.FindAllStringSubmatchIndex(s, -1)
	for i, m := range matches {
		if !strings.EqualFold(strings.TrimSpace(s[m[4]:m[5]]), name) {
			continue
		}
		level := m[3] - m[2]
		end := len(s)
		for _, next := range matches[i+1:] {
			if next[3]-next[2] <= level {
				end = next[0]
				break
			}
		}
		return s[:m[0]] + stripSection(s[end:], name)
	}
	return s
}

// stripNested removes balanced open/close regions, including nested
// ones. An unbalanced open marker removes the rest of the text.
func stripNested(s, open, close string) string {
	var sb strings.Builder
	depth := 0
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], open):
			depth++
			i += len(open)
		case depth > 0 && strings.HasPrefix(s[i:], close):
			depth--
			i += len(close)
		default:
			if depth == 0 {
				sb.WriteByte(s[i])
			}
			i++
		}
	}
	return sb.String()
}

// stripNonArticleLinks removes category, file and interlanguage links,
// including any links nested inside their captions.
func stripNonArticleLinks(s string) string {
	var sb strings.Builder
	for {
		i := strings.Index(s, "[[")
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		sb.WriteString(s[:i])

		rest := s[i+2:]
		target := rest
		if j := strings.IndexAny(rest, "|]"); j >= 0 {
			target = rest[:j]
		}
		if !isNamespaced(target) {
			sb.WriteString("[[")
			s = rest
			continue
		}

		depth := 1
		j := 0
		for j < len(rest) && depth > 0 {
			switch {
			case strings.HasPrefix(rest[j:], "[["):
				depth++
				j += 2
			case strings.HasPrefix(rest[j:], "]]"):
				depth--
				j += 2
			default:
				j++
			}
		}
		s = rest[j:]
	}
}
