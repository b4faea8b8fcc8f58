// Package linkminer finds the topics a document mentions and links them
// to the knowledge base articles that describe them.
package linkminer

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/config"
	"github.com/cognicore/linkminer/pkg/linkminer/disambig"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/preprocess"
	"github.com/cognicore/linkminer/pkg/linkminer/relatedness"
	"github.com/cognicore/linkminer/pkg/linkminer/tagging"
	"github.com/cognicore/linkminer/pkg/linkminer/topics"
	"github.com/cognicore/linkminer/pkg/linkminer/weighting"
	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

// Wikifier is the main facade. It is not safe for concurrent use;
// parallel callers build one Wikifier per worker.
type Wikifier struct {
	kb       kb.KnowledgeBase
	d        *disambig.Disambiguator
	det      *topics.Detector
	w        *weighting.LinkWeighter
	defaults WikifyOptions
	closer   io.Closer
	logger   *slog.Logger
}

// Options configures a Wikifier
type Options struct {
	KB     kb.KnowledgeBase
	Engine *relatedness.Engine // nil means a fresh engine over KB

	Disambig  disambig.Options
	Topics    topics.Options
	Weighting weighting.Options

	// Defaults are used by Wikify callers that start from Defaults().
	Defaults WikifyOptions

	// Closer is closed by Close.
	Closer io.Closer
}

// WikifyOptions controls one Wikify call
type WikifyOptions struct {
	// Source is plain, html, wiki or auto.
	Source string

	// MinProbability is the lowest weight a topic needs to be linked.
	MinProbability float64

	RepeatMode tagging.RepeatMode

	// BannedTopics is a ';' separated list of ids or titles that are
	// never linked.
	BannedTopics string

	// Renderer writes links. Nil means HTML anchors under BaseURL for
	// html sources and wiki links otherwise.
	Renderer tagging.Renderer
	BaseURL  string
}

// DefaultWikifyOptions links topics weighing at least 0.5, once per
// region.
func DefaultWikifyOptions() WikifyOptions {
	return WikifyOptions{
		Source:         "auto",
		MinProbability: 0.5,
		RepeatMode:     tagging.FirstInRegion,
		BaseURL:        "https://en.wikipedia.org",
	}
}

// Result is the outcome of Wikify
type Result struct {
	Markup        string
	Format        preprocess.Format
	Topics        []*annotate.Topic // linked topics, heaviest first
	DocumentScore float64
}

// New creates a Wikifier with the given dependencies
func New(opts Options) *Wikifier {
	engine := opts.Engine
	if engine == nil {
		engine = relatedness.New(opts.KB, relatedness.Options{})
	}
	if opts.Disambig.Logger == nil {
		opts.Disambig.Logger = slog.Default()
	}
	if opts.Weighting.Logger == nil {
		opts.Weighting.Logger = opts.Disambig.Logger
	}
	if opts.Defaults.Source == "" && opts.Defaults.MinProbability == 0 {
		opts.Defaults = DefaultWikifyOptions()
	}

	d := disambig.New(engine, opts.Disambig)
	det := topics.New(d, opts.Topics)
	return &Wikifier{
		kb:       engine.KnowledgeBase(),
		d:        d,
		det:      det,
		w:        weighting.New(det, opts.Weighting),
		defaults: opts.Defaults,
		closer:   opts.Closer,
		logger:   opts.Disambig.Logger,
	}
}

// FromComponents builds a Wikifier with its own caches from loaded
// configuration and reads the configured models.
func FromComponents(c *config.Components) (*Wikifier, error) {
	engine, err := c.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("relatedness engine: %w", err)
	}
	mode, err := c.Settings.RepeatMode()
	if err != nil {
		return nil, err
	}

	w := New(Options{
		Engine:    engine,
		Disambig:  c.DisambigOptions(),
		Topics:    c.TopicOptions(),
		Weighting: weighting.Options{Quiet: c.Quiet, Logger: c.Logger},
		Defaults: WikifyOptions{
			Source:         "auto",
			MinProbability: c.Settings.Tagging.MinWeight,
			RepeatMode:     mode,
			BaseURL:        c.Settings.Tagging.BaseURL,
		},
	})
	if err := c.LoadModels(w.d, w.w); err != nil {
		return nil, err
	}
	return w, nil
}

// Close cleanly shuts down the Wikifier
func (w *Wikifier) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Defaults returns the options Wikify callers start from.
func (w *Wikifier) Defaults() WikifyOptions { return w.defaults }

// KnowledgeBase returns the snapshot topics are resolved against.
func (w *Wikifier) KnowledgeBase() kb.KnowledgeBase { return w.kb }

// Disambiguator returns the sense scorer.
func (w *Wikifier) Disambiguator() *disambig.Disambiguator { return w.d }

// Detector returns the topic detector.
func (w *Wikifier) Detector() *topics.Detector { return w.det }

// LinkWeighter returns the topic weighter.
func (w *Wikifier) LinkWeighter() *weighting.LinkWeighter { return w.w }

// Preprocess turns markup into a document. An empty or "auto" source
// is detected from the markup.
func (w *Wikifier) Preprocess(markup, source string) (*preprocess.Document, error) {
	f, ok := preprocess.ParseFormat(source)
	if !ok {
		switch strings.ToLower(strings.TrimSpace(source)) {
		case "", "auto":
			f = preprocess.Detect(markup)
		default:
			return nil, fmt.Errorf("source %q: %w", source, internalerr.ErrInvalidInput)
		}
	}
	return preprocess.For(f, w.kb).Preprocess(markup), nil
}

// Ban adds the ids and titles of a ';' separated list to the banned
// topics of doc. Unknown titles are ignored.
func (w *Wikifier) Ban(doc *preprocess.Document, list string) {
	for _, item := range strings.Split(list, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if id, err := strconv.Atoi(item); err == nil {
			doc.Ban(id)
			continue
		}
		id, ok := w.kb.TitleToID(wikitext.Capitalize(item))
		if !ok {
			w.logger.Debug("unknown banned topic", "title", item)
			continue
		}
		doc.Ban(id)
	}
}

// DetectTopics finds the topics of a preprocessed document.
func (w *Wikifier) DetectTopics(doc *preprocess.Document) ([]*annotate.Topic, error) {
	return w.det.Detect(doc)
}

// WeightTopics sets topic weights and orders topics heaviest first.
func (w *Wikifier) WeightTopics(ts []*annotate.Topic) ([]*annotate.Topic, error) {
	return w.w.Weight(ts)
}

// Tag writes links for the topics of doc that pass opts.
func (w *Wikifier) Tag(doc *preprocess.Document, ts []*annotate.Topic, opts WikifyOptions) string {
	r := opts.Renderer
	if r == nil {
		if doc.Format == preprocess.HTML {
			r = tagging.HTML{BaseURL: opts.BaseURL}
		} else {
			r = tagging.Wiki{}
		}
	}
	return tagging.Tag(doc, ts, opts.MinProbability, opts.RepeatMode, r)
}

// Wikify preprocesses markup, detects and weighs its topics, and links
// those that pass opts.
func (w *Wikifier) Wikify(markup string, opts WikifyOptions) (*Result, error) {
	doc, err := w.Preprocess(markup, opts.Source)
	if err != nil {
		return nil, err
	}
	w.Ban(doc, opts.BannedTopics)

	detected, err := w.DetectTopics(doc)
	if err != nil {
		return nil, fmt.Errorf("detect topics: %w", err)
	}
	weighted, err := w.WeightTopics(detected)
	if err != nil {
		return nil, fmt.Errorf("weight topics: %w", err)
	}

	linked := make([]*annotate.Topic, 0, len(weighted))
	for _, t := range weighted {
		if t.Weight >= opts.MinProbability {
			linked = append(linked, t)
		}
	}

	return &Result{
		Markup:        w.Tag(doc, weighted, opts),
		Format:        doc.Format,
		Topics:        linked,
		DocumentScore: topics.DocumentScore(detected),
	}, nil
}
