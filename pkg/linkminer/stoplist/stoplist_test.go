package stoplist

import (
	"testing"
)

func TestManagerBasic(t *testing.T) {
	mgr := NewManager([]string{"The", " a ", "and", ""})

	if !mgr.IsStop("the") || !mgr.IsStop("THE") {
		t.Error("'the' should be a stopword in any case")
	}
	if !mgr.IsStop("a") {
		t.Error("'a' should be trimmed and stored")
	}
	if mgr.IsStop("hello") {
		t.Error("'hello' should not be a stopword")
	}
	if len(mgr.All()) != 3 {
		t.Errorf("expected 3 stopwords, got %v", mgr.All())
	}

	var nilMgr *Manager
	if nilMgr.IsStop("the") {
		t.Error("nil manager should not report stopwords")
	}
}

func TestManagerAddRemove(t *testing.T) {
	mgr := NewManager([]string{"the"})

	mgr.Add("Of", Reason{LowLinkProb: true})
	if !mgr.IsStop("of") {
		t.Error("'of' should be stopword after adding")
	}
	if r, ok := mgr.Reason("of"); !ok || !r.LowLinkProb {
		t.Errorf("unexpected reason %+v", r)
	}

	mgr.Remove("OF")
	if mgr.IsStop("of") {
		t.Error("'of' should not be stopword after removing")
	}
}

func TestManagerAllSorted(t *testing.T) {
	mgr := NewManager([]string{"zebra", "apple", "mango"})
	stops := mgr.All()
	if stops[0] != "apple" || stops[1] != "mango" || stops[2] != "zebra" {
		t.Errorf("expected sorted [apple mango zebra], got %v", stops)
	}
}

func TestSuggestCandidates(t *testing.T) {
	mgr := NewManager([]string{"the"})
	stats := []Stats{
		{Phrase: "the", OccCount: 900000, LinkProbability: 0.00001},
		{Phrase: "which", OccCount: 50000, LinkProbability: 0.0001},
		{Phrase: "also", OccCount: 40000, LinkProbability: 0.004},
		{Phrase: "aviation", OccCount: 5000, LinkProbability: 0.3},
		{Phrase: "zygote", OccCount: 20, LinkProbability: 0.001},
	}

	candidates := mgr.SuggestCandidates(stats, DefaultThresholds())
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", candidates)
	}
	if candidates[0].Phrase != "which" || candidates[1].Phrase != "also" {
		t.Errorf("unexpected order %+v", candidates)
	}
	if candidates[0].Score <= candidates[1].Score {
		t.Error("expected descending scores")
	}
}
