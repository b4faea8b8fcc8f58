package linkminer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/classify"
	"github.com/cognicore/linkminer/pkg/linkminer/config"
	"github.com/cognicore/linkminer/pkg/linkminer/disambig"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/kb/kbtest"
	"github.com/cognicore/linkminer/pkg/linkminer/preprocess"
	"github.com/cognicore/linkminer/pkg/linkminer/relatedness"
	"github.com/cognicore/linkminer/pkg/linkminer/tagging"
	"github.com/cognicore/linkminer/pkg/linkminer/weighting"
)

// byRelatedness accepts senses that are related to the context.
var byRelatedness = classify.Func(func(x []float64) float64 {
	if x[1] > 0.3 {
		return 0.9
	}
	return 0.1
})

// byLinkProbability weighs topics by how often their anchors are linked.
var byLinkProbability = classify.Func(func(x []float64) float64 {
	return x[4] + 0.5
})

const sentence = "The carpenter used a plane on the woodworking bench"

func newWikifier(t *testing.T, weigher classify.Classifier) *Wikifier {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := relatedness.New(kbtest.New(), relatedness.Options{
		Graphs: &kb.GraphSet{InLinks: true},
	})
	return New(Options{
		Engine:    engine,
		Disambig:  disambig.Options{Classifier: byRelatedness, Quiet: true, Logger: logger},
		Weighting: weighting.Options{Classifier: weigher, Quiet: true},
	})
}

func options() WikifyOptions {
	opts := DefaultWikifyOptions()
	opts.MinProbability = 0.7
	return opts
}

func linkedIDs(ts []*annotate.Topic) []int {
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestWikifyPlainText(t *testing.T) {
	w := newWikifier(t, byLinkProbability)
	defer w.Close()

	res, err := w.Wikify(sentence, options())
	if err != nil {
		t.Fatalf("Wikify: %v", err)
	}

	want := "The carpenter used a [[Plane (tool)|plane]] on the [[woodworking]] bench"
	if res.Markup != want {
		t.Errorf("got %q, want %q", res.Markup, want)
	}
	if res.Format != preprocess.Plain {
		t.Errorf("expected plain format, got %v", res.Format)
	}
	// woodworking 0.9, plane 0.75; the carpenter at 0.6 is not linked
	got := linkedIDs(res.Topics)
	if len(got) != 2 || got[0] != kbtest.Woodworking || got[1] != kbtest.PlaneTool {
		t.Errorf("unexpected linked topics %v", got)
	}
	if res.DocumentScore <= 0 {
		t.Errorf("expected related topics to score, got %v", res.DocumentScore)
	}
}

func TestWikifyHTML(t *testing.T) {
	w := newWikifier(t, byLinkProbability)

	res, err := w.Wikify("<p>"+sentence+"</p>", options())
	if err != nil {
		t.Fatalf("Wikify: %v", err)
	}
	want := `<p>The carpenter used a <a href="https://en.wikipedia.org/wiki/Plane_%28tool%29">plane</a>` +
		` on the <a href="https://en.wikipedia.org/wiki/Woodworking">woodworking</a> bench</p>`
	if res.Markup != want {
		t.Errorf("got %q, want %q", res.Markup, want)
	}
	if res.Format != preprocess.HTML {
		t.Errorf("expected html format, got %v", res.Format)
	}
}

func TestWikifyWikiKeepsExistingLinks(t *testing.T) {
	w := newWikifier(t, byLinkProbability)

	markup := "A [[Woodworking|woodworking]] shop uses a plane and more [[carpentry]]."
	opts := options()
	opts.Source = "wiki"
	res, err := w.Wikify(markup, opts)
	if err != nil {
		t.Fatalf("Wikify: %v", err)
	}

	want := "A [[Woodworking|woodworking]] shop uses a [[Plane (tool)|plane]] and more [[carpentry]]."
	if res.Markup != want {
		t.Errorf("got %q, want %q", res.Markup, want)
	}
}

func TestWikifyBannedTopics(t *testing.T) {
	w := newWikifier(t, byLinkProbability)

	opts := options()
	opts.BannedTopics = "woodworking; 11 ;Nowhere"
	res, err := w.Wikify(sentence, opts)
	if err != nil {
		t.Fatalf("Wikify: %v", err)
	}
	want := "The carpenter used a [[Plane (tool)|plane]] on the woodworking bench"
	if res.Markup != want {
		t.Errorf("got %q, want %q", res.Markup, want)
	}
}

func TestWikifyCustomRenderer(t *testing.T) {
	w := newWikifier(t, byLinkProbability)

	opts := options()
	opts.Renderer = tagging.RenderFunc(func(anchor string, _ *annotate.Topic) string {
		return "{" + anchor + "}"
	})
	res, err := w.Wikify(sentence, opts)
	if err != nil {
		t.Fatalf("Wikify: %v", err)
	}
	if res.Markup != "The carpenter used a {plane} on the {woodworking} bench" {
		t.Errorf("unexpected markup %q", res.Markup)
	}
}

func TestWikifyErrors(t *testing.T) {
	w := newWikifier(t, nil)

	if _, err := w.Wikify(sentence, options()); !errors.Is(err, internalerr.ErrNotTrained) {
		t.Errorf("expected ErrNotTrained without a link model, got %v", err)
	}

	opts := options()
	opts.Source = "pdf"
	if _, err := w.Wikify(sentence, opts); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for an unknown source, got %v", err)
	}
}

func TestFromComponents(t *testing.T) {
	s := config.DefaultSettings()
	s.Tagging.Mode = "all"
	s.Tagging.MinWeight = 0.8

	comp, err := (&config.Loader{Settings: s, KB: kbtest.New()}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer comp.Close()

	w, err := FromComponents(comp)
	if err != nil {
		t.Fatalf("FromComponents: %v", err)
	}
	d := w.Defaults()
	if d.RepeatMode != tagging.All || d.MinProbability != 0.8 {
		t.Errorf("expected configured defaults, got %+v", d)
	}
	if w.Disambiguator().Trained() || w.LinkWeighter().Trained() {
		t.Error("expected untrained models without model paths")
	}
}
