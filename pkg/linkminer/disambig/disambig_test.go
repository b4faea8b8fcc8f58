package disambig

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb/kbtest"
	"github.com/cognicore/linkminer/pkg/linkminer/kb/memkb"
	"github.com/cognicore/linkminer/pkg/linkminer/relatedness"
	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

const (
	woodArticle = 50
	airArticle  = 51
	missing     = 999
)

func fixture() *memkb.KB {
	k := kbtest.New()
	k.SetMarkup(woodArticle, "A [[Carpentry|carpentry]] shop uses a [[Plane (tool)|plane]] for [[woodworking]].")
	k.SetMarkup(airArticle, "An [[aviation]] [[Fixed-wing aircraft|plane]] lands at the [[airport]].")
	return k
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Quiet = true
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func trained(t *testing.T) *Disambiguator {
	t.Helper()
	d := New(relatedness.New(fixture(), relatedness.Options{}), quietOptions())
	if err := d.Train(context.Background(), []int{woodArticle, airArticle, missing}, wikitext.All); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if err := d.BuildClassifier(); err != nil {
		t.Fatalf("BuildClassifier: %v", err)
	}
	return d
}

func TestDefaults(t *testing.T) {
	d := New(relatedness.New(kbtest.New(), relatedness.Options{}), Options{})
	opts := d.Options()
	if opts.MinSenseProbability != 0.02 || opts.MinLinkProbability != 0.03 ||
		opts.MaxAnchorLength != 20 || opts.MaxContextSize != 25 {
		t.Errorf("unexpected defaults %+v", opts)
	}
	if opts.ContextExclude == nil || opts.Logger == nil {
		t.Error("expected default exclusion and logger")
	}
}

func TestNoThreshold(t *testing.T) {
	engine := relatedness.New(kbtest.New(), relatedness.Options{})
	opts := effective(engine, Options{MinSenseProbability: NoThreshold, MinLinkProbability: NoThreshold})
	if opts.MinSenseProbability != 0 || opts.MinLinkProbability != 0 {
		t.Errorf("expected disabled thresholds, got %v / %v", opts.MinSenseProbability, opts.MinLinkProbability)
	}

	opts = effective(engine, Options{MinSenseProbability: 0.1})
	if opts.MinSenseProbability != 0.1 || opts.MinLinkProbability != 0.03 {
		t.Errorf("expected an explicit threshold and a default, got %+v", opts)
	}
}

func effective(engine *relatedness.Engine, opts Options) Options {
	return New(engine, opts).Options()
}

func TestScoreUntrained(t *testing.T) {
	d := New(relatedness.New(kbtest.New(), relatedness.Options{}), quietOptions())
	if d.Trained() {
		t.Fatal("new disambiguator must not be trained")
	}
	c := d.NewContext(nil)
	if _, err := d.Score(0.5, 0.5, c); !errors.Is(err, internalerr.ErrNotTrained) {
		t.Errorf("expected ErrNotTrained, got %v", err)
	}
	if _, err := d.Test(context.Background(), []int{woodArticle}, wikitext.All); !errors.Is(err, internalerr.ErrNotTrained) {
		t.Errorf("expected ErrNotTrained from Test, got %v", err)
	}
}

func TestTrainCollectsAmbiguousSenses(t *testing.T) {
	d := New(relatedness.New(fixture(), relatedness.Options{}), quietOptions())
	if err := d.Train(context.Background(), []int{woodArticle, missing}, wikitext.All); err != nil {
		t.Fatalf("Train: %v", err)
	}

	data := d.TrainingData()
	// the four senses of "plane"; carpentry and woodworking are confident
	if data.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d", data.Len())
	}
	if data.Positives() != 1 {
		t.Errorf("expected one valid sense, got %d", data.Positives())
	}
	for _, e := range data.Examples {
		if e.Features[2] <= 0 {
			t.Errorf("expected a non-empty context, got quality %v", e.Features[2])
		}
	}
	if data.Examples[0].Features[0] != 0.6 {
		t.Errorf("expected the most common sense first, got %v", data.Examples[0].Features)
	}
}

func TestTrainAndTest(t *testing.T) {
	d := trained(t)

	summary, err := d.Test(context.Background(), []int{woodArticle, airArticle}, wikitext.All)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if summary.Items != 2 {
		t.Fatalf("expected 2 tested articles, got %d", summary.Items)
	}
	if summary.Precision() != 1 || summary.Recall() != 1 {
		t.Errorf("expected perfect disambiguation, got %s", summary)
	}
}

func TestScoreFavoursRelatedSense(t *testing.T) {
	d := trained(t)
	anchors := annotate.NewAnchorCache(d.Engine().KnowledgeBase())
	c := d.NewContext([]*annotate.Anchor{anchors.Lookup("carpentry"), anchors.Lookup("woodworking")})

	tool, err := d.Score(0.25, c.RelatednessTo(kbtest.PlaneTool), c)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	aircraft, _ := d.Score(0.6, c.RelatednessTo(kbtest.Aircraft), c)
	if tool <= 0.5 || aircraft >= 0.5 {
		t.Errorf("expected tool > 0.5 > aircraft in a woodworking context, got %.3f and %.3f", tool, aircraft)
	}
}

func TestBuildWithoutData(t *testing.T) {
	d := New(relatedness.New(kbtest.New(), relatedness.Options{}), quietOptions())
	if err := d.BuildClassifier(); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTrainingDataPersistence(t *testing.T) {
	d := New(relatedness.New(fixture(), relatedness.Options{}), quietOptions())
	if err := d.Train(context.Background(), []int{woodArticle, airArticle}, wikitext.All); err != nil {
		t.Fatalf("Train: %v", err)
	}

	var buf bytes.Buffer
	if err := d.SaveTrainingData(&buf); err != nil {
		t.Fatalf("SaveTrainingData: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "commonness,relatedness,context_quality,") {
		t.Errorf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}

	other := New(relatedness.New(fixture(), relatedness.Options{}), quietOptions())
	if err := other.LoadTrainingData(&buf); err != nil {
		t.Fatalf("LoadTrainingData: %v", err)
	}
	if other.TrainingData().Len() != d.TrainingData().Len() {
		t.Errorf("expected %d rows, got %d", d.TrainingData().Len(), other.TrainingData().Len())
	}
	if err := other.BuildClassifier(); err != nil {
		t.Fatalf("BuildClassifier: %v", err)
	}

	bad := strings.NewReader("a,b,valid,weight\n1,2,true,1\n")
	if err := other.LoadTrainingData(bad); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for foreign columns, got %v", err)
	}
}

func TestModelPersistence(t *testing.T) {
	d := trained(t)

	var buf bytes.Buffer
	if err := d.SaveModel(&buf); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	other := New(relatedness.New(fixture(), relatedness.Options{}), quietOptions())
	if err := other.LoadModel(&buf); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if !other.Trained() {
		t.Fatal("expected loaded model to be usable")
	}

	c := d.NewContext(nil)
	want, _ := d.Score(0.3, 0.4, c)
	got, _ := other.Score(0.3, 0.4, c)
	if want != got {
		t.Errorf("score changed after reload: %v != %v", got, want)
	}
}

func TestCancelledTraining(t *testing.T) {
	d := New(relatedness.New(fixture(), relatedness.Options{}), quietOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Train(ctx, []int{woodArticle}, wikitext.All); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
