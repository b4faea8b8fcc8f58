package preprocess

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

var (
	blockTags = map[atom.Atom]bool{
		atom.Body: true, atom.P: true, atom.Div: true, atom.Section: true,
		atom.Article: true, atom.Blockquote: true, atom.Pre: true,
		atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true,
		atom.Dd: true, atom.Dt: true, atom.Table: true, atom.Tr: true,
		atom.Td: true, atom.Th: true, atom.H1: true, atom.H2: true,
		atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	}
	splitTags = map[atom.Atom]bool{atom.Br: true, atom.Hr: true}
	// hiddenTags hold text that is never part of the document body
	hiddenTags = map[atom.Atom]bool{
		atom.Script: true, atom.Style: true, atom.Noscript: true,
		atom.Textarea: true, atom.Select: true,
	}
	contextMeta = map[string]bool{"description": true, "keywords": true}
)

// HTMLPreprocessor blanks tags, scripts and styles. The title, the
// description and keyword meta tags, and the text of existing links
// become context. Existing links to wiki articles are banned.
type HTMLPreprocessor struct {
	Titles TitleResolver
}

// Preprocess implements Preprocessor.
func (p *HTMLPreprocessor) Preprocess(markup string) *Document {
	doc := &Document{Format: HTML, Original: markup, Banned: make(map[int]bool)}
	bl := newBlanker(markup)
	var context []string

	z := html.NewTokenizer(strings.NewReader(markup))
	offset := 0
	hidden, inLink := 0, 0
	inTitle := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		start := offset
		end := start + len(z.Raw())
		offset = end

		switch tt {
		case html.TextToken:
			if hidden == 0 && !inTitle && inLink == 0 {
				continue
			}
			bl.blank(start, end)
			if hidden == 0 {
				if text := strings.TrimSpace(string(z.Text())); text != "" {
					context = append(context, text)
				}
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			bl.blank(start, end)
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			attrs := make(map[string]string)
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs[string(k)] = string(v)
			}
			opening := tt == html.StartTagToken

			switch {
			case hiddenTags[a]:
				if opening {
					hidden++
				}
			case a == atom.Title:
				inTitle = opening
			case a == atom.Meta:
				if contextMeta[strings.ToLower(attrs["name"])] && attrs["content"] != "" {
					context = append(context, attrs["content"])
				}
			case a == atom.A:
				p.ban(doc, attrs["href"])
				if opening {
					inLink++
				}
			case blockTags[a]:
				if opening {
					doc.Regions = append(doc.Regions, RegionTag{Offset: start, Kind: RegionOpen})
				}
			case splitTags[a]:
				doc.Regions = append(doc.Regions, RegionTag{Offset: start, Kind: RegionSplit})
			}

		case html.EndTagToken:
			bl.blank(start, end)
			name, _ := z.TagName()
			switch a := atom.Lookup(name); {
			case hiddenTags[a]:
				if hidden > 0 {
					hidden--
				}
			case a == atom.Title:
				inTitle = false
			case a == atom.A:
				if inLink > 0 {
					inLink--
				}
			case blockTags[a]:
				doc.Regions = append(doc.Regions, RegionTag{Offset: start, Kind: RegionClose})
			}

		default:
			// comments and doctypes
			bl.blank(start, end)
		}
	}

	doc.Preprocessed = bl.String()
	doc.Context = strings.Join(context, "\n")
	return doc
}

// ban resolves links of the form .../wiki/Title.
func (p *HTMLPreprocessor) ban(doc *Document, href string) {
	if p.Titles == nil {
		return
	}
	i := strings.Index(href, "/wiki/")
	if i < 0 {
		return
	}
	title := href[i+len("/wiki/"):]
	if j := strings.IndexAny(title, "#?"); j >= 0 {
		title = title[:j]
	}
	if unescaped, err := url.PathUnescape(title); err == nil {
		title = unescaped
	}
	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	if title == "" {
		return
	}
	if id, ok := p.Titles.TitleToID(wikitext.Capitalize(title)); ok {
		doc.Ban(id)
	}
}
