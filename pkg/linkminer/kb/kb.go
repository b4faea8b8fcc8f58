package kb

import (
	"context"
	"fmt"
	"strings"
)

// KnowledgeBase is a read-only view over a static corpus snapshot.
// Every method except ArticleMarkup is expected to be served from memory.
type KnowledgeBase interface {
	// Anchor returns link statistics and the ordered senses for a phrase.
	// Unknown phrases return ok=false; that is never an error.
	Anchor(text string) (AnchorStats, bool)

	// LinkProbability is the fraction of occurrences of text used as a link.
	LinkProbability(text string) float64

	// InLinks returns the sorted ids of pages linking to id.
	InLinks(id int) []int

	// OutLinks returns the out-links of id sorted by target id.
	OutLinks(id int) []OutLink

	// Generality returns the category depth measure of id, if known.
	Generality(id int) (float64, bool)

	// TotalArticles is the number of articles in the corpus.
	TotalArticles() int64

	// TitleToID resolves a title, following redirects.
	TitleToID(title string) (int, bool)

	// Page returns page metadata.
	Page(id int) (Page, bool)

	// Graphs reports which link graphs the snapshot carries.
	Graphs() GraphSet

	// ArticleMarkup returns raw article markup. This may hit storage.
	ArticleMarkup(ctx context.Context, id int) (string, error)
}

// PageKind distinguishes the kinds of corpus page.
type PageKind int

const (
	KindArticle PageKind = iota
	KindCategory
	KindRedirect
	KindDisambiguation
)

func (k PageKind) String() string {
	switch k {
	case KindArticle:
		return "article"
	case KindCategory:
		return "category"
	case KindRedirect:
		return "redirect"
	case KindDisambiguation:
		return "disambiguation"
	default:
		return fmt.Sprintf("PageKind(%d)", int(k))
	}
}

// ParsePageKind maps a stored kind name to a PageKind.
func ParsePageKind(s string) (PageKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "article", "":
		return KindArticle, nil
	case "category":
		return KindCategory, nil
	case "redirect":
		return KindRedirect, nil
	case "disambiguation":
		return KindDisambiguation, nil
	}
	return KindArticle, fmt.Errorf("unknown page kind %q", s)
}

// Page identifies a corpus page
type Page struct {
	ID    int
	Title string
	Kind  PageKind
}

// Sense is one candidate destination of an anchor
type Sense struct {
	Page
	Count int64   // times the anchor links to this page
	Prior float64 // Count / anchor link count
}

// AnchorStats holds the corpus statistics for one phrase
type AnchorStats struct {
	Text      string
	LinkCount int64
	OccCount  int64 // -1 when occurrences were never summarized
	Senses    []Sense
}

// LinkProbability returns LinkCount/OccCount capped at 1.
func (a AnchorStats) LinkProbability() float64 {
	if a.OccCount <= 0 {
		return 0
	}
	p := float64(a.LinkCount) / float64(a.OccCount)
	if p > 1 {
		return 1
	}
	return p
}

// OutLink is a link target with the number of pages linking to it
type OutLink struct {
	ID    int
	Count int64
}

// GraphSet reports which link graphs are loaded
type GraphSet struct {
	InLinks  bool
	OutLinks bool
}
