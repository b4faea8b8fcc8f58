// Package topics turns the candidate mentions of a document into
// disambiguated, aggregated topics.
package topics

import (
	"fmt"
	"sort"

	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/disambig"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/preprocess"
	"github.com/cognicore/linkminer/pkg/linkminer/scan"
)

// Options configures a Detector
type Options struct {
	// Strict keeps only the best sense of each phrase.
	Strict bool

	// AllowDisambiguations lets disambiguation pages become topics.
	AllowDisambiguations bool

	// Stopwords are never treated as mentions.
	Stopwords scan.Stoplist

	// Anchors is reused across documents when set. Otherwise every
	// document gets a fresh cache.
	Anchors *annotate.AnchorCache
}

// Detector finds the topics of documents. It is not safe for concurrent
// use; parallel callers create one Detector per worker.
type Detector struct {
	opts    Options
	d       *disambig.Disambiguator
	kb      kb.KnowledgeBase
	scanner *scan.Scanner
}

// New creates a detector that resolves senses with d.
func New(d *disambig.Disambiguator, opts Options) *Detector {
	do := d.Options()
	return &Detector{
		opts: opts,
		d:    d,
		kb:   d.Engine().KnowledgeBase(),
		scanner: scan.New(scan.Options{
			MaxAnchorLength:    do.MaxAnchorLength,
			MinLinkProbability: do.MinLinkProbability,
			Stopwords:          opts.Stopwords,
		}),
	}
}

// Disambiguator returns the sense scorer.
func (t *Detector) Disambiguator() *disambig.Disambiguator { return t.d }

// Detect finds the topics of a preprocessed document.
func (t *Detector) Detect(doc *preprocess.Document) ([]*annotate.Topic, error) {
	return t.DetectText(doc.Preprocessed, doc.Context, doc.Banned)
}

type scoredSense struct {
	kb.Sense
	score float64
}

// DetectText finds the topics of text. Phrases in contextText only add
// disambiguation evidence. Topics whose id is in banned are dropped.
// Topics are ordered by first mention, then id.
func (t *Detector) DetectText(text, contextText string, banned map[int]bool) ([]*annotate.Topic, error) {
	anchors := t.opts.Anchors
	if anchors == nil {
		anchors = annotate.NewAnchorCache(t.kb)
	}
	minSenseProb := t.d.Options().MinSenseProbability

	refs := t.scanner.Scan(text, anchors, scan.DocumentMode)
	evidence := refs
	if contextText != "" {
		evidence = append(append([]annotate.TopicReference(nil), refs...),
			t.scanner.Scan(contextText, anchors, scan.DocumentMode)...)
	}
	c := t.d.NewContext(scan.Confident(evidence, minSenseProb))

	// phrase text -> valid senses, best first
	resolved := make(map[string][]scoredSense)
	byID := make(map[int]*annotate.Topic)
	var topics []*annotate.Topic

	for _, ref := range refs {
		senses, ok := resolved[ref.Anchor.Text]
		if !ok {
			var err error
			if senses, err = t.validSenses(ref.Anchor, c, minSenseProb); err != nil {
				return nil, fmt.Errorf("disambiguate %q: %w", ref.Anchor.Text, err)
			}
			resolved[ref.Anchor.Text] = senses
		}
		if t.opts.Strict && len(senses) > 1 {
			senses = senses[:1]
		}

		for _, s := range senses {
			topic, ok := byID[s.ID]
			if !ok {
				topic = annotate.NewTopic(s.Page, c.RelatednessTo(s.ID), len(text))
				topic.Generality, topic.HasGenerality = t.kb.Generality(s.ID)
				byID[s.ID] = topic
				topics = append(topics, topic)
			}
			topic.AddReference(ref, s.score)
		}
	}

	engine := t.d.Engine()
	if n := len(topics); n > 1 {
		for _, a := range topics {
			sum := 0.0
			for _, b := range topics {
				if a.ID != b.ID {
					sum += engine.Relatedness(a.ID, b.ID)
				}
			}
			a.RelatednessToOtherTopics = sum / float64(n-1)
		}
	}

	kept := topics[:0]
	for _, topic := range topics {
		if !banned[topic.ID] {
			kept = append(kept, topic)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].FirstOffset() != kept[j].FirstOffset() {
			return kept[i].FirstOffset() < kept[j].FirstOffset()
		}
		return kept[i].ID < kept[j].ID
	})
	return kept, nil
}

// validSenses scores the senses of a in order of commonness and keeps
// those the disambiguator accepts.
func (t *Detector) validSenses(a *annotate.Anchor, c *annotate.Context, minSenseProb float64) ([]scoredSense, error) {
	var valid []scoredSense
	for _, s := range a.Senses {
		if s.Prior < minSenseProb {
			break
		}
		if s.Kind == kb.KindDisambiguation && !t.opts.AllowDisambiguations {
			continue
		}
		score, err := t.d.Score(s.Prior, c.RelatednessTo(s.ID), c)
		if err != nil {
			return nil, err
		}
		if score > 0.5 {
			valid = append(valid, scoredSense{Sense: s, score: score})
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].score != valid[j].score {
			return valid[i].score > valid[j].score
		}
		return valid[i].ID < valid[j].ID
	})
	return valid, nil
}

// DocumentScore sums how related each topic is to the others, a rough
// measure of how cohesive the document is.
func DocumentScore(topics []*annotate.Topic) float64 {
	score := 0.0
	for _, t := range topics {
		score += t.RelatednessToOtherTopics
	}
	return score
}
