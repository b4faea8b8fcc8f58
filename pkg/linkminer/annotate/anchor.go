package annotate

import (
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
)

// Anchor is a phrase found in a document together with its corpus
// statistics.
type Anchor struct {
	Text      string
	LinkCount int64
	OccCount  int64
	Senses    []kb.Sense
}

// LinkProbability returns the fraction of occurrences used as links.
func (a *Anchor) LinkProbability() float64 {
	return kb.AnchorStats{LinkCount: a.LinkCount, OccCount: a.OccCount}.LinkProbability()
}

// Confident reports whether the anchor can serve as context: it has a
// single sense, or its top sense is above 1-minSenseProb.
func (a *Anchor) Confident(minSenseProb float64) bool {
	if len(a.Senses) == 0 {
		return false
	}
	return len(a.Senses) == 1 || a.Senses[0].Prior > 1-minSenseProb
}

// AnchorCache resolves phrases against the knowledge base once per
// unique text. It is not safe for concurrent use.
type AnchorCache struct {
	kb      kb.KnowledgeBase
	anchors map[string]*Anchor
}

// NewAnchorCache creates an empty cache over k.
func NewAnchorCache(k kb.KnowledgeBase) *AnchorCache {
	return &AnchorCache{kb: k, anchors: make(map[string]*Anchor)}
}

// Lookup returns the anchor for text, consulting the knowledge base on
// first use. Unknown phrases yield an anchor with no senses.
func (c *AnchorCache) Lookup(text string) *Anchor {
	if a, ok := c.anchors[text]; ok {
		return a
	}

	stats, _ := c.kb.Anchor(text)
	a := &Anchor{
		Text:      text,
		LinkCount: stats.LinkCount,
		OccCount:  stats.OccCount,
		Senses:    stats.Senses,
	}
	c.anchors[text] = a
	return a
}

// Len returns the number of distinct phrases looked up.
func (c *AnchorCache) Len() int { return len(c.anchors) }
