// Package disambig decides which sense of an ambiguous phrase a document
// means, using a classifier over sense commonness and context
// relatedness.
package disambig

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/cognicore/linkminer/internal/progress"
	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/classify"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/relatedness"
	"github.com/cognicore/linkminer/pkg/linkminer/scan"
	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

// Features is the column order of the disambiguation feature table.
var Features = []string{"commonness", "relatedness", "context_quality"}

// NoThreshold disables a probability threshold in Options.
const NoThreshold = -1

// Options configures a Disambiguator. Zero thresholds select the
// defaults; use NoThreshold to turn a threshold off.
type Options struct {
	MinSenseProbability float64 // senses less common than this are never considered
	MinLinkProbability  float64 // phrases linked less often are not mined for context
	MaxAnchorLength     int     // longest phrase checked, in tokens
	MaxContextSize      int     // most senses kept as context

	// ContextExclude keeps pages out of contexts. Nil means DateTitle.
	ContextExclude annotate.ExcludeFunc

	// Classifier scores senses. Nil means an untrained logistic
	// regression.
	Classifier classify.Classifier

	Quiet  bool // no progress bars during batch work
	Logger *slog.Logger
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		MinSenseProbability: 0.02,
		MinLinkProbability:  0.03,
		MaxAnchorLength:     20,
		MaxContextSize:      25,
	}
}

// Disambiguator scores candidate senses against a document context.
type Disambiguator struct {
	opts    Options
	engine  *relatedness.Engine
	kb      kb.KnowledgeBase
	scanner *scan.Scanner
	logger  *slog.Logger

	mu         sync.RWMutex
	classifier classify.Classifier
	data       *classify.Dataset
}

// New creates a disambiguator that measures relatedness with engine.
func New(engine *relatedness.Engine, opts Options) *Disambiguator {
	def := DefaultOptions()
	opts.MinSenseProbability = threshold(opts.MinSenseProbability, def.MinSenseProbability)
	opts.MinLinkProbability = threshold(opts.MinLinkProbability, def.MinLinkProbability)
	if opts.MaxAnchorLength <= 0 {
		opts.MaxAnchorLength = def.MaxAnchorLength
	}
	if opts.MaxContextSize <= 0 {
		opts.MaxContextSize = def.MaxContextSize
	}
	if opts.ContextExclude == nil {
		opts.ContextExclude = annotate.DateTitle
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	classifier := opts.Classifier
	if classifier == nil {
		classifier = classify.NewLogisticRegression(classify.DefaultLogisticConfig())
	}

	return &Disambiguator{
		opts:   opts,
		engine: engine,
		kb:     engine.KnowledgeBase(),
		scanner: scan.New(scan.Options{
			MaxAnchorLength:    opts.MaxAnchorLength,
			MinLinkProbability: opts.MinLinkProbability,
		}),
		logger:     opts.Logger,
		classifier: classifier,
		data:       classify.NewDataset("disambiguation", Features),
	}
}

func threshold(v, def float64) float64 {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	}
	return v
}

// Options returns the effective options.
func (d *Disambiguator) Options() Options { return d.opts }

// Engine returns the relatedness engine.
func (d *Disambiguator) Engine() *relatedness.Engine { return d.engine }

// NewContext builds a context from confident anchors using the
// configured size and exclusions.
func (d *Disambiguator) NewContext(anchors []*annotate.Anchor) *annotate.Context {
	return annotate.NewContext(anchors, d.engine, d.opts.MaxContextSize, d.opts.ContextExclude)
}

// Trained reports whether Score can be used.
func (d *Disambiguator) Trained() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.classifier.Trained()
}

// Score returns the probability that a sense with the given commonness
// and relatedness to ctx is the intended one.
func (d *Disambiguator) Score(commonness, relatednessToContext float64, ctx *annotate.Context) (float64, error) {
	d.mu.RLock()
	c := d.classifier
	d.mu.RUnlock()

	if !c.Trained() {
		return 0, internalerr.ErrNotTrained
	}
	return c.Predict([]float64{commonness, relatednessToContext, ctx.Quality()})
}

type link struct {
	anchor *annotate.Anchor
	dest   int
}

// links resolves the article links of cleaned markup and splits them into
// confident and ambiguous ones. Links to unknown articles or through
// phrases with no senses are dropped.
func (d *Disambiguator) links(content string, anchors *annotate.AnchorCache) (confident, ambiguous []link) {
	for _, l := range wikitext.Links(content) {
		dest, ok := d.kb.TitleToID(l.Target)
		if !ok {
			continue
		}
		a := anchors.Lookup(l.Anchor)
		if len(a.Senses) == 0 {
			continue
		}
		if a.Confident(d.opts.MinSenseProbability) {
			confident = append(confident, link{anchor: a, dest: dest})
		} else {
			ambiguous = append(ambiguous, link{anchor: a, dest: dest})
		}
	}
	return confident, ambiguous
}

// articleContext mines every confident phrase of the article text, linked
// or not, as context.
func (d *Disambiguator) articleContext(content string, anchors *annotate.AnchorCache) *annotate.Context {
	refs := d.scanner.Scan(wikitext.StripLinks(content), anchors, scan.ContextMode)
	return d.NewContext(scan.Confident(refs, d.opts.MinSenseProbability))
}

// Train adds feature rows for the ambiguous links of each article.
// Articles that cannot be fetched are logged and skipped.
func (d *Disambiguator) Train(ctx context.Context, articles []int, snippet wikitext.SnippetMode) error {
	bar := progress.Start(len(articles), "training disambiguator", d.opts.Quiet)
	defer bar.Finish()

	for _, id := range articles {
		if err := ctx.Err(); err != nil {
			return err
		}
		markup, err := d.kb.ArticleMarkup(ctx, id)
		bar.Increment()
		if err != nil {
			d.logger.Warn("skipping article", "id", id, "error", err)
			continue
		}
		n := d.trainArticle(wikitext.LinksOnly(markup, snippet))
		d.logger.Debug("trained on article", "id", id, "examples", n)
	}
	return nil
}

func (d *Disambiguator) trainArticle(content string) int {
	anchors := annotate.NewAnchorCache(d.kb)
	_, ambiguous := d.links(content, anchors)
	if len(ambiguous) == 0 {
		return 0
	}
	c := d.articleContext(content, anchors)

	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, l := range ambiguous {
		for _, s := range l.anchor.Senses {
			if s.Prior < d.opts.MinSenseProbability {
				break
			}
			row := []float64{s.Prior, c.RelatednessTo(s.ID), c.Quality()}
			if err := d.data.Add(row, s.ID == l.dest); err != nil {
				d.logger.Warn("dropping feature row", "error", err)
				continue
			}
			n++
		}
	}
	return n
}

// TrainingData returns the accumulated feature table.
func (d *Disambiguator) TrainingData() *classify.Dataset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data
}

// BuildClassifier balances the training data and fits the classifier.
func (d *Disambiguator) BuildClassifier() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.data.Len() == 0 {
		return fmt.Errorf("build disambiguation classifier: no training data: %w", internalerr.ErrInvalidInput)
	}
	d.data.Reweight()
	if err := d.classifier.Fit(d.data); err != nil {
		return fmt.Errorf("build disambiguation classifier: %w", err)
	}
	d.logger.Info("built disambiguation classifier",
		"examples", d.data.Len(), "positive", d.data.Positives())
	return nil
}

// Test disambiguates the links of each article and compares the chosen
// senses with the ones the authors linked to.
func (d *Disambiguator) Test(ctx context.Context, articles []int, snippet wikitext.SnippetMode) (*classify.Summary, error) {
	if !d.Trained() {
		return nil, internalerr.ErrNotTrained
	}

	bar := progress.Start(len(articles), "testing disambiguator", d.opts.Quiet)
	defer bar.Finish()

	summary := &classify.Summary{}
	for _, id := range articles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		markup, err := d.kb.ArticleMarkup(ctx, id)
		bar.Increment()
		if err != nil {
			d.logger.Warn("skipping article", "id", id, "error", err)
			continue
		}
		r, err := d.testArticle(wikitext.LinksOnly(markup, snippet))
		if err != nil {
			return nil, fmt.Errorf("test article %d: %w", id, err)
		}
		d.logger.Debug("tested article", "id", id, "result", r.String())
		summary.Add(r)
	}
	return summary, nil
}

func (d *Disambiguator) testArticle(content string) (classify.Result, error) {
	anchors := annotate.NewAnchorCache(d.kb)
	confident, ambiguous := d.links(content, anchors)

	var gold, found []int
	for _, l := range confident {
		gold = append(gold, l.dest)
		found = append(found, l.dest)
	}
	for _, l := range ambiguous {
		gold = append(gold, l.dest)
	}

	if len(ambiguous) > 0 {
		c := d.articleContext(content, anchors)
		for _, l := range ambiguous {
			best, ok, err := d.bestSense(l.anchor, c)
			if err != nil {
				return classify.Result{}, err
			}
			if ok {
				found = append(found, best)
			}
		}
	}
	return classify.Compare(found, gold), nil
}

// bestSense returns the highest scoring sense of a when it scores above
// 0.5.
func (d *Disambiguator) bestSense(a *annotate.Anchor, c *annotate.Context) (int, bool, error) {
	best, bestScore := 0, 0.5
	found := false
	for _, s := range a.Senses {
		if s.Prior < d.opts.MinSenseProbability {
			break
		}
		score, err := d.Score(s.Prior, c.RelatednessTo(s.ID), c)
		if err != nil {
			return 0, false, err
		}
		if score > bestScore {
			best, bestScore, found = s.ID, score, true
		}
	}
	return best, found, nil
}

// SaveTrainingData writes the feature table as CSV.
func (d *Disambiguator) SaveTrainingData(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data.WriteCSV(w)
}

// LoadTrainingData replaces the feature table with one read from CSV.
func (d *Disambiguator) LoadTrainingData(r io.Reader) error {
	data, err := classify.ReadCSV("disambiguation", r)
	if err != nil {
		return fmt.Errorf("load disambiguation training data: %w", err)
	}
	if !slices.Equal(data.Features, Features) {
		return fmt.Errorf("load disambiguation training data: columns %v, want %v: %w", data.Features, Features, internalerr.ErrInvalidInput)
	}

	d.mu.Lock()
	d.data = data
	d.mu.Unlock()
	return nil
}

// SaveModel writes the trained classifier as JSON.
func (d *Disambiguator) SaveModel(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.classifier.(*classify.LogisticRegression)
	if !ok {
		return fmt.Errorf("save disambiguation model: %T cannot be persisted: %w", d.classifier, internalerr.ErrInvalidInput)
	}
	return m.Save(w)
}

// LoadModel replaces the classifier with one read from JSON.
func (d *Disambiguator) LoadModel(r io.Reader) error {
	m, err := classify.LoadLogisticRegression(r)
	if err != nil {
		return fmt.Errorf("load disambiguation model: %w", err)
	}
	if !slices.Equal(m.Features, Features) {
		return fmt.Errorf("load disambiguation model: features %v, want %v: %w", m.Features, Features, internalerr.ErrInvalidInput)
	}

	d.mu.Lock()
	d.classifier = m
	d.mu.Unlock()
	d.logger.Info("loaded disambiguation model", "id", m.ID)
	return nil
}
