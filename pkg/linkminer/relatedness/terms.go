package relatedness

import (
	"math"

	"github.com/cognicore/linkminer/pkg/linkminer/kb"
)

const (
	termMinPrior        = 0.01
	termBenchmarkWindow = 0.40
)

// TermComparison explains how two phrases were compared
type TermComparison struct {
	Relatedness float64
	SenseA      kb.Sense
	SenseB      kb.Sense
	Found       bool
}

// CompareTerms relates two anchor phrases by picking the most plausible
// pair of senses. Candidate pairs must fall within a window of the best
// relatedness seen so far; among them the pair with the highest average
// prior wins. Phrases that are frequently linked together as one anchor
// get a small bonus.
func (e *Engine) CompareTerms(a, b string) TermComparison {
	statsA, _ := e.kb.Anchor(a)
	statsB, _ := e.kb.Anchor(b)

	bonus := 0.0
	if combined, ok := e.kb.Anchor(a + " " + b); ok && combined.LinkCount > 0 {
		bonus = math.Log(float64(combined.LinkCount)) / 30
	}

	type pair struct {
		a, b         kb.Sense
		rel, obvious float64
	}

	benchmark := 0.0
	var candidates []pair
	for _, sa := range statsA.Senses {
		if sa.Prior < termMinPrior {
			break
		}
		for _, sb := range statsB.Senses {
			if sb.Prior < termMinPrior {
				break
			}
			rel := e.Relatedness(sa.ID, sb.ID)
			if rel <= benchmark-termBenchmarkWindow {
				continue
			}
			if rel > benchmark+termBenchmarkWindow {
				benchmark = rel
				candidates = candidates[:0]
			}
			candidates = append(candidates, pair{a: sa, b: sb, rel: rel, obvious: (sa.Prior + sb.Prior) / 2})
		}
	}

	if len(candidates) == 0 {
		return TermComparison{}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.obvious > best.obvious {
			best = c
		}
	}

	return TermComparison{
		Relatedness: math.Min(1, best.rel+bonus),
		SenseA:      best.a,
		SenseB:      best.b,
		Found:       true,
	}
}
