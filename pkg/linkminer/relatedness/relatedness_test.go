package relatedness

import (
	"math"
	"testing"

	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/kb/kbtest"
)

func TestRelatednessSymmetricAndReflexive(t *testing.T) {
	e := New(kbtest.New(), Options{})

	ids := []int{kbtest.PlaneTool, kbtest.Aircraft, kbtest.Carpentry, kbtest.Aviation, kbtest.PlaneDisambig, 12345}
	for _, a := range ids {
		if got := e.Relatedness(a, a); got != 1 {
			t.Errorf("Relatedness(%d,%d) = %v, want 1", a, a, got)
		}
		for _, b := range ids {
			ab := e.Relatedness(a, b)
			ba := e.Relatedness(b, a)
			if ab != ba {
				t.Errorf("asymmetric: r(%d,%d)=%v r(%d,%d)=%v", a, b, ab, b, a, ba)
			}
			if ab < 0 || ab > 1 || math.IsNaN(ab) {
				t.Errorf("r(%d,%d)=%v out of range", a, b, ab)
			}
		}
	}
}

func TestInLinkRelatedness(t *testing.T) {
	// |A|=5, |B|=4, shared=3, M=1000
	got := InLinkRelatedness([]int{100, 101, 102, 103, 104}, []int{100, 101, 102, 105}, 1000)
	a, b, ab, m := math.Log(5), math.Log(4), math.Log(3), math.Log(1000)
	want := 1 - (a-ab)/(m-b)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}

	tests := []struct {
		name   string
		a, b   []int
		total  int64
		expect float64
	}{
		{"disjoint", []int{1, 2}, []int{3, 4}, 1000, 0},
		{"empty", nil, []int{3, 4}, 1000, 0},
		{"both empty", nil, nil, 1000, 0},
		{"identical sets", []int{1, 2, 3}, []int{1, 2, 3}, 1000, 1},
	}
	for _, tt := range tests {
		if got := InLinkRelatedness(tt.a, tt.b, tt.total); got != tt.expect {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expect, got)
		}
	}
}

func TestOutLinkRelatedness(t *testing.T) {
	same := []kb.OutLink{{ID: 1, Count: 10}, {ID: 2, Count: 5}}
	if got := OutLinkRelatedness(same, same, 1000); math.Abs(got-1) > 1e-6 {
		t.Errorf("identical vectors: expected 1, got %v", got)
	}

	orthogonal := OutLinkRelatedness([]kb.OutLink{{ID: 1, Count: 10}}, []kb.OutLink{{ID: 2, Count: 10}}, 1000)
	if orthogonal != 0 {
		t.Errorf("orthogonal vectors: expected 0, got %v", orthogonal)
	}

	if got := OutLinkRelatedness(nil, same, 1000); got != 0 {
		t.Errorf("empty vector: expected 0, got %v", got)
	}

	partial := OutLinkRelatedness(
		[]kb.OutLink{{ID: 1, Count: 10}, {ID: 2, Count: 5}},
		[]kb.OutLink{{ID: 2, Count: 5}, {ID: 3, Count: 10}},
		1000,
	)
	if partial <= 0 || partial >= 1 {
		t.Errorf("partial overlap should be strictly between 0 and 1, got %v", partial)
	}
}

func TestCombinedUsesBothGraphs(t *testing.T) {
	k := kbtest.New()
	in := New(k, Options{Graphs: &kb.GraphSet{InLinks: true}})
	out := New(k, Options{Graphs: &kb.GraphSet{OutLinks: true}})
	both := New(k, Options{})

	ri := in.Relatedness(kbtest.PlaneTool, kbtest.Carpentry)
	ro := out.Relatedness(kbtest.PlaneTool, kbtest.Carpentry)
	rb := both.Relatedness(kbtest.PlaneTool, kbtest.Carpentry)
	if math.Abs(rb-(ri+ro)/2) > 1e-12 {
		t.Errorf("expected average of %v and %v, got %v", ri, ro, rb)
	}
	if ri <= ro {
		t.Errorf("expected in-link score %v above out-link score %v for this fixture", ri, ro)
	}
}

func TestRelatednessMemoized(t *testing.T) {
	cache := NewMapCache()
	e := New(kbtest.New(), Options{Cache: cache})

	first := e.Relatedness(kbtest.Aircraft, kbtest.Aviation)
	if cache.Len() != 1 {
		t.Fatalf("expected 1 cached pair, got %d", cache.Len())
	}
	e.Relatedness(kbtest.Aviation, kbtest.Aircraft)
	if cache.Len() != 1 {
		t.Errorf("reversed pair should hit the cache, got %d entries", cache.Len())
	}
	if v, ok := cache.Get(PairKey(kbtest.Aviation, kbtest.Aircraft)); !ok || v != first {
		t.Errorf("expected cached %v, got %v, %v", first, v, ok)
	}
}

func TestLRUCacheBounded(t *testing.T) {
	c, err := NewLRUCache(2)
	if err != nil {
		t.Fatalf("NewLRUCache: %v", err)
	}
	c.Add(1, 0.1)
	c.Add(2, 0.2)
	c.Add(3, 0.3)
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(1); ok {
		t.Error("expected oldest entry to be evicted")
	}

	if _, err := NewLRUCache(0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestPairKeyUnordered(t *testing.T) {
	if PairKey(3, 9) != PairKey(9, 3) {
		t.Error("pair key must not depend on order")
	}
	if PairKey(3, 9) != 3+9<<30 {
		t.Errorf("unexpected key %d", PairKey(3, 9))
	}
}

func TestCompareTerms(t *testing.T) {
	e := New(kbtest.New(), Options{Graphs: &kb.GraphSet{InLinks: true}})

	cmp := e.CompareTerms("plane", "carpentry")
	if !cmp.Found {
		t.Fatal("expected a sense pair")
	}
	if cmp.SenseA.ID != kbtest.PlaneTool {
		t.Errorf("expected plane to resolve to the tool next to carpentry, got %d", cmp.SenseA.ID)
	}

	cmp = e.CompareTerms("plane", "airport")
	if cmp.SenseA.ID != kbtest.Aircraft {
		t.Errorf("expected plane to resolve to the aircraft next to airport, got %d", cmp.SenseA.ID)
	}

	if got := e.CompareTerms("plane", "unknown phrase"); got.Found || got.Relatedness != 0 {
		t.Errorf("expected no comparison, got %+v", got)
	}
}
