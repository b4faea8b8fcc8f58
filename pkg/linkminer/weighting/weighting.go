// Package weighting scores detected topics by how likely an author would
// be to link them.
package weighting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/cognicore/linkminer/internal/progress"
	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/classify"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/topics"
	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

// Features is the column order of the link feature table.
var Features = []string{
	"occurrences",
	"max_disambig_confidence",
	"avg_disambig_confidence",
	"relatedness_to_other_topics",
	"max_link_probability",
	"avg_link_probability",
	"generality",
	"first_occurrence",
	"last_occurrence",
	"spread",
}

// FeatureVector describes a topic in Features order. Missing generality
// is NaN.
func FeatureVector(t *annotate.Topic) []float64 {
	generality := math.NaN()
	if t.HasGenerality {
		generality = t.Generality
	}
	return []float64{
		float64(t.Occurrences()),
		t.MaxConfidence(),
		t.AvgConfidence(),
		t.RelatednessToOtherTopics,
		t.MaxLinkProbability(),
		t.AvgLinkProbability(),
		generality,
		t.FirstOccurrence(),
		t.LastOccurrence(),
		t.Spread(),
	}
}

// Options configures a LinkWeighter
type Options struct {
	// Classifier scores topics. Nil means an untrained logistic
	// regression.
	Classifier classify.Classifier

	Quiet  bool
	Logger *slog.Logger
}

// LinkWeighter assigns link-worthiness weights to topics.
type LinkWeighter struct {
	det    *topics.Detector
	kb     kb.KnowledgeBase
	quiet  bool
	logger *slog.Logger

	mu         sync.RWMutex
	classifier classify.Classifier
	data       *classify.Dataset
}

// New creates a weighter that detects training topics with det.
func New(det *topics.Detector, opts Options) *LinkWeighter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = classify.NewLogisticRegression(classify.DefaultLogisticConfig())
	}
	return &LinkWeighter{
		det:        det,
		kb:         det.Disambiguator().Engine().KnowledgeBase(),
		quiet:      opts.Quiet,
		logger:     opts.Logger,
		classifier: classifier,
		data:       classify.NewDataset("linking", Features),
	}
}

// Trained reports whether Weight can be used.
func (w *LinkWeighter) Trained() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.classifier.Trained()
}

// Weight sets the Weight of every topic and returns them ordered by
// descending weight, then id. The input slice is not reordered.
func (w *LinkWeighter) Weight(ts []*annotate.Topic) ([]*annotate.Topic, error) {
	w.mu.RLock()
	c := w.classifier
	w.mu.RUnlock()

	if !c.Trained() {
		return nil, internalerr.ErrNotTrained
	}
	for _, t := range ts {
		p, err := c.Predict(FeatureVector(t))
		if err != nil {
			return nil, fmt.Errorf("weight topic %d: %w", t.ID, err)
		}
		t.Weight = p
	}

	out := append([]*annotate.Topic(nil), ts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// article is a training or test document with its linked topics.
type article struct {
	text   string
	linked map[int]bool
}

func (w *LinkWeighter) fetch(ctx context.Context, id int, snippet wikitext.SnippetMode) (article, error) {
	markup, err := w.kb.ArticleMarkup(ctx, id)
	if err != nil {
		return article{}, err
	}
	content := wikitext.LinksOnly(markup, snippet)

	linked := map[int]bool{id: true}
	for _, l := range wikitext.Links(content) {
		if dest, ok := w.kb.TitleToID(l.Target); ok {
			linked[dest] = true
		}
	}
	return article{text: wikitext.StripLinks(content), linked: linked}, nil
}

// Train detects the topics of each article and labels them by whether
// the author linked them. Articles that cannot be fetched are logged and
// skipped.
func (w *LinkWeighter) Train(ctx context.Context, articles []int, snippet wikitext.SnippetMode) error {
	bar := progress.Start(len(articles), "training link weighter", w.quiet)
	defer bar.Finish()

	for _, id := range articles {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, err := w.fetch(ctx, id, snippet)
		bar.Increment()
		if err != nil {
			w.logger.Warn("skipping article", "id", id, "error", err)
			continue
		}

		ts, err := w.det.DetectText(a.text, "", nil)
		if err != nil {
			return fmt.Errorf("train on article %d: %w", id, err)
		}

		w.mu.Lock()
		for _, t := range ts {
			if err := w.data.Add(FeatureVector(t), a.linked[t.ID]); err != nil {
				w.logger.Warn("dropping feature row", "error", err)
			}
		}
		w.mu.Unlock()
		w.logger.Debug("trained on article", "id", id, "topics", len(ts))
	}
	return nil
}

// TrainingData returns the accumulated feature table.
func (w *LinkWeighter) TrainingData() *classify.Dataset {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.data
}

// BuildClassifier balances the training data and fits the classifier.
func (w *LinkWeighter) BuildClassifier() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.data.Len() == 0 {
		return fmt.Errorf("build link classifier: no training data: %w", internalerr.ErrInvalidInput)
	}
	w.data.Reweight()
	if err := w.classifier.Fit(w.data); err != nil {
		return fmt.Errorf("build link classifier: %w", err)
	}
	w.logger.Info("built link classifier",
		"examples", w.data.Len(), "positive", w.data.Positives())
	return nil
}

// Test weights the topics of each article and compares the ones above
// 0.5 with the ones the author linked.
func (w *LinkWeighter) Test(ctx context.Context, articles []int, snippet wikitext.SnippetMode) (*classify.Summary, error) {
	if !w.Trained() {
		return nil, internalerr.ErrNotTrained
	}

	bar := progress.Start(len(articles), "testing link weighter", w.quiet)
	defer bar.Finish()

	summary := &classify.Summary{}
	for _, id := range articles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := w.fetch(ctx, id, snippet)
		bar.Increment()
		if err != nil {
			w.logger.Warn("skipping article", "id", id, "error", err)
			continue
		}

		ts, err := w.det.DetectText(a.text, "", nil)
		if err != nil {
			return nil, fmt.Errorf("test article %d: %w", id, err)
		}
		if ts, err = w.Weight(ts); err != nil {
			return nil, fmt.Errorf("test article %d: %w", id, err)
		}

		var found, gold []int
		for _, t := range ts {
			if t.Weight > 0.5 {
				found = append(found, t.ID)
			}
		}
		for linked := range a.linked {
			gold = append(gold, linked)
		}

		r := classify.Compare(found, gold)
		w.logger.Debug("tested article", "id", id, "result", r.String())
		summary.Add(r)
	}
	return summary, nil
}

// SaveTrainingData writes the feature table as CSV.
func (w *LinkWeighter) SaveTrainingData(out io.Writer) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.data.WriteCSV(out)
}

// LoadTrainingData replaces the feature table with one read from CSV.
func (w *LinkWeighter) LoadTrainingData(r io.Reader) error {
	data, err := classify.ReadCSV("linking", r)
	if err != nil {
		return fmt.Errorf("load link training data: %w", err)
	}
	if !slices.Equal(data.Features, Features) {
		return fmt.Errorf("load link training data: columns %v, want %v: %w", data.Features, Features, internalerr.ErrInvalidInput)
	}

	w.mu.Lock()
	w.data = data
	w.mu.Unlock()
	return nil
}

// SaveModel writes the trained classifier as JSON.
func (w *LinkWeighter) SaveModel(out io.Writer) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	m, ok := w.classifier.(*classify.LogisticRegression)
	if !ok {
		return fmt.Errorf("save link model: %T cannot be persisted: %w", w.classifier, internalerr.ErrInvalidInput)
	}
	return m.Save(out)
}

// LoadModel replaces the classifier with one read from JSON.
func (w *LinkWeighter) LoadModel(r io.Reader) error {
	m, err := classify.LoadLogisticRegression(r)
	if err != nil {
		return fmt.Errorf("load link model: %w", err)
	}
	if !slices.Equal(m.Features, Features) {
		return fmt.Errorf("load link model: features %v, want %v: %w", m.Features, Features, internalerr.ErrInvalidInput)
	}

	w.mu.Lock()
	w.classifier = m
	w.mu.Unlock()
	w.logger.Info("loaded link model", "id", m.ID)
	return nil
}
