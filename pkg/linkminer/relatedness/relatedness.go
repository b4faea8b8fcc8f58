package relatedness

import (
	"math"

	"github.com/cognicore/linkminer/pkg/linkminer/kb"
)

// Engine computes graph-based semantic relatedness between concepts and
// memoizes the results.
type Engine struct {
	kb     kb.KnowledgeBase
	cache  Cache
	graphs kb.GraphSet
}

// Options configures an Engine
type Options struct {
	// Cache memoizes pair scores. Nil means a fresh MapCache.
	Cache Cache

	// Graphs restricts which link graphs are used. Nil means every graph
	// the knowledge base carries.
	Graphs *kb.GraphSet
}

// New creates an engine over k.
func New(k kb.KnowledgeBase, opts Options) *Engine {
	cache := opts.Cache
	if cache == nil {
		cache = NewMapCache()
	}

	graphs := k.Graphs()
	if opts.Graphs != nil {
		graphs.InLinks = graphs.InLinks && opts.Graphs.InLinks
		graphs.OutLinks = graphs.OutLinks && opts.Graphs.OutLinks
	}

	return &Engine{kb: k, cache: cache, graphs: graphs}
}

// KnowledgeBase returns the snapshot the engine reads from.
func (e *Engine) KnowledgeBase() kb.KnowledgeBase { return e.kb }

// Cache returns the memo table.
func (e *Engine) Cache() Cache { return e.cache }

// Relatedness returns a symmetric score in [0,1]; identical ids score 1.
func (e *Engine) Relatedness(a, b int) float64 {
	if a == b {
		return 1
	}

	key := PairKey(a, b)
	if v, ok := e.cache.Get(key); ok {
		return v
	}

	v := e.compute(a, b)
	e.cache.Add(key, v)
	return v
}

func (e *Engine) compute(a, b int) float64 {
	total := e.kb.TotalArticles()

	switch {
	case e.graphs.InLinks && e.graphs.OutLinks:
		in := InLinkRelatedness(e.kb.InLinks(a), e.kb.InLinks(b), total)
		out := OutLinkRelatedness(e.kb.OutLinks(a), e.kb.OutLinks(b), total)
		return (in + out) / 2
	case e.graphs.InLinks:
		return InLinkRelatedness(e.kb.InLinks(a), e.kb.InLinks(b), total)
	case e.graphs.OutLinks:
		return OutLinkRelatedness(e.kb.OutLinks(a), e.kb.OutLinks(b), total)
	}
	return 0
}

// PairKey folds an unordered id pair into one integer.
func PairKey(a, b int) int64 {
	if a > b {
		a, b = b, a
	}
	return int64(a) + int64(b)<<30
}

// InLinkRelatedness compares two sorted in-link id lists using the
// normalized link distance over a corpus of total articles.
func InLinkRelatedness(inA, inB []int, total int64) float64 {
	if len(inA) == 0 || len(inB) == 0 || total <= 0 {
		return 0
	}

	a := math.Log(float64(len(inA)))
	b := math.Log(float64(len(inB)))
	ab := math.Log(float64(countShared(inA, inB)))
	m := math.Log(float64(total))

	d := (math.Max(a, b) - ab) / (m - math.Min(a, b))
	if math.IsNaN(d) || math.IsInf(d, 0) || d > 1 {
		d = 1
	}
	return clamp(1 - d)
}

// countShared counts ids present in both sorted lists.
func countShared(a, b []int) int {
	n := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// OutLinkRelatedness compares two out-link lists (sorted by id) as
// vectors weighted by inverse link frequency. 0 means orthogonal and 1
// means identical.
func OutLinkRelatedness(outA, outB []kb.OutLink, total int64) float64 {
	if len(outA) == 0 || len(outB) == 0 || total <= 0 {
		return 0
	}

	var dot, normA, normB float64
	i, j := 0, 0
	for i < len(outA) || j < len(outB) {
		switch {
		case j >= len(outB) || (i < len(outA) && outA[i].ID < outB[j].ID):
			w := linkWeight(outA[i].Count, total)
			normA += w * w
			i++
		case i >= len(outA) || outB[j].ID < outA[i].ID:
			w := linkWeight(outB[j].Count, total)
			normB += w * w
			j++
		default:
			w := linkWeight(outA[i].Count, total)
			dot += w * w
			normA += w * w
			normB += w * w
			i++
			j++
		}
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	cos = math.Max(-1, math.Min(1, cos))
	angle := math.Acos(cos)

	return clamp((math.Pi/2 - angle) / (math.Pi / 2))
}

// linkWeight favors rarely linked targets.
func linkWeight(count, total int64) float64 {
	if count <= 0 {
		return 0
	}
	w := math.Log(float64(total) / float64(count))
	if w < 0 || math.IsNaN(w) {
		return 0
	}
	return w
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
