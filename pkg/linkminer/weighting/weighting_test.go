package weighting

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/classify"
	"github.com/cognicore/linkminer/pkg/linkminer/disambig"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/kb/kbtest"
	"github.com/cognicore/linkminer/pkg/linkminer/relatedness"
	"github.com/cognicore/linkminer/pkg/linkminer/topics"
	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

const (
	woodArticle = 60
	airArticle  = 61
)

var byRelatedness = classify.Func(func(x []float64) float64 {
	if x[1] > 0.3 {
		return 0.9
	}
	return 0.1
})

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newDetector() *topics.Detector {
	k := kbtest.New()
	k.SetMarkup(woodArticle, "A [[Carpenters' guild|carpenter]] used a [[Plane (tool)|plane]] on the woodworking bench.")
	k.SetMarkup(airArticle, "The [[aeroplane]] landed: a plane at the [[airport]] hangar")
	// an article that mentions itself without linking
	k.SetMarkup(kbtest.PlaneTool, "A carpenter sharpened the plane beside the [[woodworking]] bench.")

	engine := relatedness.New(k, relatedness.Options{Graphs: &kb.GraphSet{InLinks: true}})
	d := disambig.New(engine, disambig.Options{Classifier: byRelatedness, Quiet: true, Logger: quiet})
	return topics.New(d, topics.Options{})
}

func TestFeatureVector(t *testing.T) {
	topic := annotate.NewTopic(kb.Page{ID: 1}, 0.5, 100)
	topic.AddReference(annotate.TopicReference{Position: annotate.Position{Start: 10, End: 15}}, 0.8)
	topic.AddReference(annotate.TopicReference{Position: annotate.Position{Start: 60, End: 65}}, 0.6)
	topic.RelatednessToOtherTopics = 0.4

	v := FeatureVector(topic)
	if len(v) != len(Features) {
		t.Fatalf("expected %d features, got %d", len(Features), len(v))
	}
	if v[0] != 2 || v[1] != 0.8 || math.Abs(v[2]-0.7) > 1e-9 || v[3] != 0.4 {
		t.Errorf("unexpected leading features %v", v[:4])
	}
	if !math.IsNaN(v[6]) {
		t.Errorf("missing generality should be NaN, got %v", v[6])
	}
	if v[7] != 0.1 || v[8] != 0.6 || math.Abs(v[9]-0.5) > 1e-9 {
		t.Errorf("unexpected position features %v", v[7:])
	}

	topic.Generality, topic.HasGenerality = 3, true
	if FeatureVector(topic)[6] != 3 {
		t.Error("expected generality to be used when present")
	}
}

func TestWeightSortsTopics(t *testing.T) {
	byLinkProb := classify.Func(func(x []float64) float64 { return x[4] })
	w := New(newDetector(), Options{Classifier: byLinkProb, Quiet: true, Logger: quiet})

	mk := func(id int, links int64) *annotate.Topic {
		topic := annotate.NewTopic(kb.Page{ID: id}, 0, 10)
		topic.AddReference(annotate.TopicReference{
			Anchor: &annotate.Anchor{LinkCount: links, OccCount: 100},
		}, 1)
		return topic
	}
	in := []*annotate.Topic{mk(3, 20), mk(2, 70), mk(1, 20)}

	out, err := w.Weight(in)
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if out[0].ID != 2 || out[1].ID != 1 || out[2].ID != 3 {
		t.Errorf("expected order [2 1 3], got [%d %d %d]", out[0].ID, out[1].ID, out[2].ID)
	}
	if out[0].Weight != 0.7 {
		t.Errorf("expected weight 0.7, got %v", out[0].Weight)
	}
	if in[0].ID != 3 {
		t.Error("input order should be preserved")
	}
}

func TestWeightUntrained(t *testing.T) {
	w := New(newDetector(), Options{Quiet: true, Logger: quiet})
	if _, err := w.Weight(nil); !errors.Is(err, internalerr.ErrNotTrained) {
		t.Errorf("expected ErrNotTrained, got %v", err)
	}
	if _, err := w.Test(context.Background(), []int{woodArticle}, wikitext.All); !errors.Is(err, internalerr.ErrNotTrained) {
		t.Errorf("expected ErrNotTrained from Test, got %v", err)
	}
	if err := w.BuildClassifier(); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without data, got %v", err)
	}
}

func TestTrainLabelsLinkedTopics(t *testing.T) {
	w := New(newDetector(), Options{Quiet: true, Logger: quiet})
	if err := w.Train(context.Background(), []int{woodArticle, airArticle, 999}, wikitext.All); err != nil {
		t.Fatalf("Train: %v", err)
	}

	data := w.TrainingData()
	// guild, tool, woodworking; aircraft, airport, hangar
	if data.Len() != 6 {
		t.Fatalf("expected 6 rows, got %d", data.Len())
	}
	if data.Positives() != 4 {
		t.Errorf("expected the 4 linked topics to be positive, got %d", data.Positives())
	}

	if err := w.BuildClassifier(); err != nil {
		t.Fatalf("BuildClassifier: %v", err)
	}
	summary, err := w.Test(context.Background(), []int{woodArticle, airArticle}, wikitext.All)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if summary.Items != 2 {
		t.Errorf("expected 2 tested articles, got %d", summary.Items)
	}
	if p := summary.Precision(); p < 0 || p > 1 {
		t.Errorf("precision out of range: %v", p)
	}
}

func TestTrainCountsArticleItselfAsLinked(t *testing.T) {
	det := newDetector()
	w := New(det, Options{Quiet: true, Logger: quiet})
	if err := w.Train(context.Background(), []int{kbtest.PlaneTool}, wikitext.All); err != nil {
		t.Fatalf("Train: %v", err)
	}

	ts, err := det.DetectText("A carpenter sharpened the plane beside the woodworking bench.", "", nil)
	if err != nil {
		t.Fatalf("DetectText: %v", err)
	}
	data := w.TrainingData()
	if data.Len() != len(ts) || len(ts) != 3 {
		t.Fatalf("expected guild, tool and woodworking rows, got %d rows for %d topics", data.Len(), len(ts))
	}

	want := map[int]bool{
		kbtest.CarpenterGuild: false,
		kbtest.PlaneTool:      true, // never linked, but it is the article itself
		kbtest.Woodworking:    true,
	}
	for i, topic := range ts {
		label, ok := want[topic.ID]
		if !ok {
			t.Fatalf("unexpected topic %d", topic.ID)
		}
		if data.Examples[i].Label != label {
			t.Errorf("topic %d: expected label %v, got %v", topic.ID, label, data.Examples[i].Label)
		}
	}
}

func TestPersistence(t *testing.T) {
	w := New(newDetector(), Options{Quiet: true, Logger: quiet})
	if err := w.Train(context.Background(), []int{woodArticle, airArticle}, wikitext.All); err != nil {
		t.Fatalf("Train: %v", err)
	}

	var data bytes.Buffer
	if err := w.SaveTrainingData(&data); err != nil {
		t.Fatalf("SaveTrainingData: %v", err)
	}
	other := New(newDetector(), Options{Quiet: true, Logger: quiet})
	if err := other.LoadTrainingData(&data); err != nil {
		t.Fatalf("LoadTrainingData: %v", err)
	}
	if err := other.BuildClassifier(); err != nil {
		t.Fatalf("BuildClassifier: %v", err)
	}

	var model bytes.Buffer
	if err := other.SaveModel(&model); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	third := New(newDetector(), Options{Quiet: true, Logger: quiet})
	if err := third.LoadModel(&model); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if !third.Trained() {
		t.Error("expected loaded model to be usable")
	}

	fixed := New(newDetector(), Options{Classifier: byRelatedness, Quiet: true, Logger: quiet})
	if err := fixed.SaveModel(io.Discard); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected a fixed function to be unsaveable, got %v", err)
	}
}
