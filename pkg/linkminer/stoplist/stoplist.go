package stoplist

import (
	"sort"
	"strings"
)

// Manager holds the phrases the scanner must never treat as mentions.
// Lookups are case-insensitive.
type Manager struct {
	stops map[string]Reason
}

// Reason explains why a phrase is a stopword
type Reason struct {
	Configured      bool    // loaded from configuration
	LowLinkProb     bool    // almost never used as a link
	HighOccurrence  bool    // very frequent in plain text
	LinkProbability float64 // observed link probability
	OccCount        int64   // observed occurrence count
}

// NewManager creates a stoplist from configured terms.
func NewManager(initialStops []string) *Manager {
	stops := make(map[string]Reason, len(initialStops))
	for _, s := range initialStops {
		s = normalize(s)
		if s == "" {
			continue
		}
		stops[s] = Reason{Configured: true}
	}
	return &Manager{stops: stops}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsStop checks if a phrase is a stopword
func (m *Manager) IsStop(phrase string) bool {
	if m == nil {
		return false
	}
	_, ok := m.stops[normalize(phrase)]
	return ok
}

// Add adds a phrase with a reason
func (m *Manager) Add(phrase string, reason Reason) {
	m.stops[normalize(phrase)] = reason
}

// Remove removes a phrase
func (m *Manager) Remove(phrase string) {
	delete(m.stops, normalize(phrase))
}

// Reason returns why phrase was added.
func (m *Manager) Reason(phrase string) (Reason, bool) {
	r, ok := m.stops[normalize(phrase)]
	return r, ok
}

// All returns all stopwords, sorted
func (m *Manager) All() []string {
	result := make([]string, 0, len(m.stops))
	for s := range m.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// Stats holds corpus statistics for a phrase under review
type Stats struct {
	Phrase          string
	OccCount        int64
	LinkProbability float64
}

// Candidate represents a suggested stopword
type Candidate struct {
	Phrase string
	Reason Reason
	Score  float64 // confidence score
}

// Thresholds defines criteria for stopword identification
type Thresholds struct {
	MaxLinkProbability float64 // e.g. 0.005, phrases linked less often qualify
	MinOccurrences     int64   // e.g. 1000, phrases seen less often are left alone
}

// DefaultThresholds returns sensible default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxLinkProbability: 0.005,
		MinOccurrences:     1000,
	}
}

// SuggestCandidates proposes frequent phrases that are rarely linked.
// Phrases already on the list are skipped. Candidates are ordered by
// descending score.
func (m *Manager) SuggestCandidates(stats []Stats, th Thresholds) []Candidate {
	var candidates []Candidate
	for _, s := range stats {
		if m.IsStop(s.Phrase) {
			continue
		}

		reason := Reason{
			LowLinkProb:     s.LinkProbability <= th.MaxLinkProbability,
			HighOccurrence:  s.OccCount >= th.MinOccurrences,
			LinkProbability: s.LinkProbability,
			OccCount:        s.OccCount,
		}
		if !reason.LowLinkProb || !reason.HighOccurrence {
			continue
		}

		score := 1.0
		if th.MaxLinkProbability > 0 {
			score = 1 - s.LinkProbability/th.MaxLinkProbability
		}
		candidates = append(candidates, Candidate{
			Phrase: normalize(s.Phrase),
			Reason: reason,
			Score:  score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
