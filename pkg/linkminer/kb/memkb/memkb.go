package memkb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/textproc"
)

const maxRedirectHops = 8

// KB is an in-memory knowledge base snapshot.
// Writes are only expected while the snapshot is being assembled.
type KB struct {
	mu         sync.RWMutex
	processor  textproc.Processor
	pages      map[int]kb.Page
	titles     map[string]int
	redirects  map[string]string
	anchors    map[string]anchorEntry
	inLinks    map[int][]int
	outLinks   map[int][]kb.OutLink
	generality map[int]float64
	markup     map[int]string
	total      int64
	graphs     kb.GraphSet
}

type anchorEntry struct {
	linkCount int64
	occCount  int64
	senses    []kb.Sense
}

// SenseCount is a raw anchor destination count
type SenseCount struct {
	ID    int
	Count int64
}

// New creates an empty snapshot. Anchor text is passed through p on
// both insert and lookup; p may be nil.
func New(p textproc.Processor) *KB {
	return &KB{
		processor:  p,
		pages:      make(map[int]kb.Page),
		titles:     make(map[string]int),
		redirects:  make(map[string]string),
		anchors:    make(map[string]anchorEntry),
		inLinks:    make(map[int][]int),
		outLinks:   make(map[int][]kb.OutLink),
		generality: make(map[int]float64),
		markup:     make(map[int]string),
	}
}

// Processor returns the anchor text processor, or nil.
func (s *KB) Processor() textproc.Processor { return s.processor }

// AddPage registers a page. Articles count towards TotalArticles unless
// SetTotalArticles overrides it.
func (s *KB) AddPage(p kb.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pages[p.ID]; !exists && p.Kind != kb.KindRedirect {
		s.total++
	}
	s.pages[p.ID] = p
	s.titles[p.Title] = p.ID
}

// AddRedirect makes title resolve to whatever target resolves to.
func (s *KB) AddRedirect(title, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[title] = target
}

// SetAnchor stores link statistics for a phrase. When linkCount is zero
// it is taken as the sum of the sense counts. Use occCount -1 when
// occurrences are unknown.
func (s *KB) SetAnchor(text string, linkCount, occCount int64, senses []SenseCount) {
	if linkCount == 0 {
		for _, sc := range senses {
			linkCount += sc.Count
		}
	}

	entry := anchorEntry{linkCount: linkCount, occCount: occCount}
	for _, sc := range senses {
		prior := 0.0
		if linkCount > 0 {
			prior = float64(sc.Count) / float64(linkCount)
		}
		entry.senses = append(entry.senses, kb.Sense{
			Page:  kb.Page{ID: sc.ID},
			Count: sc.Count,
			Prior: prior,
		})
	}
	kb.SortSenses(entry.senses)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[textproc.Apply(s.processor, text)] = entry
}

// SetInLinks stores the ids of pages linking to id.
func (s *KB) SetInLinks(id int, ids []int) {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inLinks[id] = sorted
	s.graphs.InLinks = true
}

// SetOutLinks stores the out-links of id.
func (s *KB) SetOutLinks(id int, links []kb.OutLink) {
	sorted := append([]kb.OutLink(nil), links...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outLinks[id] = sorted
	s.graphs.OutLinks = true
}

// SetGraphs forces the reported graph availability.
func (s *KB) SetGraphs(g kb.GraphSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs = g
}

// SetGenerality stores the generality of id.
func (s *KB) SetGenerality(id int, g float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generality[id] = g
}

// SetMarkup stores the raw markup of an article.
func (s *KB) SetMarkup(id int, markup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markup[id] = markup
}

// SetTotalArticles overrides the article count.
func (s *KB) SetTotalArticles(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = n
}

// Anchor implements kb.KnowledgeBase. Senses pointing at unknown pages
// are dropped.
func (s *KB) Anchor(text string) (kb.AnchorStats, bool) {
	key := textproc.Apply(s.processor, text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.anchors[key]
	if !ok {
		return kb.AnchorStats{Text: text}, false
	}

	stats := kb.AnchorStats{
		Text:      text,
		LinkCount: entry.linkCount,
		OccCount:  entry.occCount,
		Senses:    make([]kb.Sense, 0, len(entry.senses)),
	}
	for _, sense := range entry.senses {
		page, ok := s.pages[sense.ID]
		if !ok {
			continue
		}
		sense.Page = page
		stats.Senses = append(stats.Senses, sense)
	}
	return stats, true
}

// LinkProbability implements kb.KnowledgeBase.
func (s *KB) LinkProbability(text string) float64 {
	key := textproc.Apply(s.processor, text)

	s.mu.RLock()
	entry, ok := s.anchors[key]
	s.mu.RUnlock()

	if !ok {
		return 0
	}
	return kb.AnchorStats{LinkCount: entry.linkCount, OccCount: entry.occCount}.LinkProbability()
}

// InLinks implements kb.KnowledgeBase.
func (s *KB) InLinks(id int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inLinks[id]
}

// OutLinks implements kb.KnowledgeBase.
func (s *KB) OutLinks(id int) []kb.OutLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outLinks[id]
}

// Generality implements kb.KnowledgeBase.
func (s *KB) Generality(id int) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.generality[id]
	return g, ok
}

// TotalArticles implements kb.KnowledgeBase.
func (s *KB) TotalArticles() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// TitleToID implements kb.KnowledgeBase.
func (s *KB) TitleToID(title string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for hop := 0; hop <= maxRedirectHops; hop++ {
		if target, ok := s.redirects[title]; ok {
			title = target
			continue
		}
		id, ok := s.titles[title]
		if !ok {
			return 0, false
		}
		if s.pages[id].Kind == kb.KindRedirect {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

// Page implements kb.KnowledgeBase.
func (s *KB) Page(id int) (kb.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[id]
	return p, ok
}

// Graphs implements kb.KnowledgeBase.
func (s *KB) Graphs() kb.GraphSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphs
}

// ArticleMarkup implements kb.KnowledgeBase.
func (s *KB) ArticleMarkup(ctx context.Context, id int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markup[id]
	if !ok {
		return "", fmt.Errorf("markup for article %d: %w", id, internalerr.ErrNotFound)
	}
	return m, nil
}

var _ kb.KnowledgeBase = (*KB)(nil)
