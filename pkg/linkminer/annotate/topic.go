package annotate

import (
	"math"

	"github.com/cognicore/linkminer/pkg/linkminer/kb"
)

// Topic aggregates every mention of one concept in a document.
type Topic struct {
	kb.Page
	References []TopicReference

	RelatednessToContext     float64
	RelatednessToOtherTopics float64

	Generality    float64
	HasGenerality bool

	// Weight is the link-worthiness probability set by the link weighter.
	Weight float64

	docLength     int
	maxConfidence float64
	sumConfidence float64
	maxLinkProb   float64
	sumLinkProb   float64
	first, last   int
}

// NewTopic starts an empty topic for page in a document of docLength bytes.
func NewTopic(page kb.Page, relatednessToContext float64, docLength int) *Topic {
	if docLength <= 0 {
		docLength = 1
	}
	return &Topic{
		Page:                 page,
		RelatednessToContext: relatednessToContext,
		docLength:            docLength,
		first:                -1,
	}
}

// AddReference records one resolved mention.
func (t *Topic) AddReference(ref TopicReference, confidence float64) {
	ref.TopicID = t.ID
	ref.Confidence = confidence
	t.References = append(t.References, ref)

	t.sumConfidence += confidence
	t.maxConfidence = math.Max(t.maxConfidence, confidence)

	if ref.Anchor != nil {
		lp := ref.Anchor.LinkProbability()
		t.sumLinkProb += lp
		t.maxLinkProb = math.Max(t.maxLinkProb, lp)
	}

	start := ref.Position.Start
	if t.first < 0 || start < t.first {
		t.first = start
	}
	if start > t.last {
		t.last = start
	}
}

// Occurrences returns the number of mentions.
func (t *Topic) Occurrences() int { return len(t.References) }

// MaxConfidence returns the highest disambiguation confidence.
func (t *Topic) MaxConfidence() float64 { return t.maxConfidence }

// AvgConfidence returns the mean disambiguation confidence.
func (t *Topic) AvgConfidence() float64 { return t.avg(t.sumConfidence) }

// MaxLinkProbability returns the highest anchor link probability.
func (t *Topic) MaxLinkProbability() float64 { return t.maxLinkProb }

// AvgLinkProbability returns the mean anchor link probability.
func (t *Topic) AvgLinkProbability() float64 { return t.avg(t.sumLinkProb) }

// FirstOccurrence is the first mention offset as a fraction of the document.
func (t *Topic) FirstOccurrence() float64 {
	if t.first < 0 {
		return 0
	}
	return float64(t.first) / float64(t.docLength)
}

// LastOccurrence is the last mention offset as a fraction of the document.
func (t *Topic) LastOccurrence() float64 {
	return float64(t.last) / float64(t.docLength)
}

// Spread is the distance between the first and last mention.
func (t *Topic) Spread() float64 {
	return t.LastOccurrence() - t.FirstOccurrence()
}

// FirstOffset returns the byte offset of the first mention, or -1.
func (t *Topic) FirstOffset() int { return t.first }

// Positions returns the spans of every mention.
func (t *Topic) Positions() []Position {
	out := make([]Position, len(t.References))
	for i, r := range t.References {
		out[i] = r.Position
	}
	return out
}

func (t *Topic) avg(sum float64) float64 {
	if len(t.References) == 0 {
		return 0
	}
	return sum / float64(len(t.References))
}
