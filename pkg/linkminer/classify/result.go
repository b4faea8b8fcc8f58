package classify

import "fmt"

// Result compares a set of predicted ids against the gold set.
type Result struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
}

// Compare builds a Result from predicted and gold ids. Duplicates are
// ignored.
func Compare(found, gold []int) Result {
	goldSet := make(map[int]bool, len(gold))
	for _, id := range gold {
		goldSet[id] = true
	}
	foundSet := make(map[int]bool, len(found))
	var r Result
	for _, id := range found {
		if foundSet[id] {
			continue
		}
		foundSet[id] = true
		if goldSet[id] {
			r.TruePositives++
		} else {
			r.FalsePositives++
		}
	}
	for id := range goldSet {
		if !foundSet[id] {
			r.FalseNegatives++
		}
	}
	return r
}

// Precision is tp/(tp+fp), or 0 when nothing was predicted.
func (r Result) Precision() float64 {
	if r.TruePositives+r.FalsePositives == 0 {
		return 0
	}
	return float64(r.TruePositives) / float64(r.TruePositives+r.FalsePositives)
}

// Recall is tp/(tp+fn), or 0 when the gold set is empty.
func (r Result) Recall() float64 {
	if r.TruePositives+r.FalseNegatives == 0 {
		return 0
	}
	return float64(r.TruePositives) / float64(r.TruePositives+r.FalseNegatives)
}

// FMeasure is the harmonic mean of precision and recall.
func (r Result) FMeasure() float64 {
	return fMeasure(r.Precision(), r.Recall())
}

func (r Result) String() string {
	return fmt.Sprintf("p=%.3f r=%.3f f=%.3f", r.Precision(), r.Recall(), r.FMeasure())
}

func fMeasure(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Summary averages per-document results. Precision and recall are
// averaged over documents; Total accumulates the raw counts.
type Summary struct {
	Items int
	Total Result

	precisionSum float64
	recallSum    float64
}

// Add records one document's result.
func (s *Summary) Add(r Result) {
	s.Items++
	s.Total.TruePositives += r.TruePositives
	s.Total.FalsePositives += r.FalsePositives
	s.Total.FalseNegatives += r.FalseNegatives
	s.precisionSum += r.Precision()
	s.recallSum += r.Recall()
}

// Precision returns the mean per-document precision.
func (s *Summary) Precision() float64 {
	if s.Items == 0 {
		return 0
	}
	return s.precisionSum / float64(s.Items)
}

// Recall returns the mean per-document recall.
func (s *Summary) Recall() float64 {
	if s.Items == 0 {
		return 0
	}
	return s.recallSum / float64(s.Items)
}

// FMeasure combines the averaged precision and recall.
func (s *Summary) FMeasure() float64 {
	return fMeasure(s.Precision(), s.Recall())
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d documents: p=%.3f r=%.3f f=%.3f", s.Items, s.Precision(), s.Recall(), s.FMeasure())
}
