package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/disambig"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/kb/sqlitekb"
	"github.com/cognicore/linkminer/pkg/linkminer/relatedness"
	"github.com/cognicore/linkminer/pkg/linkminer/stoplist"
	"github.com/cognicore/linkminer/pkg/linkminer/textproc"
	"github.com/cognicore/linkminer/pkg/linkminer/topics"
	"github.com/cognicore/linkminer/pkg/linkminer/weighting"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	SettingsPath string    // YAML settings; empty means defaults
	Settings     *Settings // used instead of SettingsPath when set

	// KB is used instead of opening Settings.KnowledgeBase when set.
	KB kb.KnowledgeBase

	Quiet  bool // no progress bars during batch work
	Logger *slog.Logger
}

// Components holds all loaded configuration components
type Components struct {
	Settings  *Settings
	Processor textproc.Processor
	KB        kb.KnowledgeBase
	Stoplist  *stoplist.Manager
	Quiet     bool
	Logger    *slog.Logger

	db io.Closer
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	comp := &Components{Settings: l.Settings, Quiet: l.Quiet, Logger: logger}

	// Load settings
	if comp.Settings == nil {
		if l.SettingsPath != "" {
			s, err := LoadSettings(l.SettingsPath)
			if err != nil {
				return nil, fmt.Errorf("load settings: %w", err)
			}
			comp.Settings = s
		} else {
			comp.Settings = DefaultSettings()
		}
	} else if err := comp.Settings.Validate(); err != nil {
		return nil, err
	}

	proc, err := textproc.FromNames(comp.Settings.Processors)
	if err != nil {
		return nil, fmt.Errorf("text processors: %v: %w", err, internalerr.ErrInvalidConfig)
	}
	comp.Processor = proc

	// Load stoplist
	if comp.Settings.Stoplist != "" {
		sl, err := LoadStoplist(comp.Settings.Stoplist)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Stoplist = stoplist.NewManager(sl.Terms)
	} else {
		comp.Stoplist = stoplist.NewManager(nil)
	}

	// Load knowledge base
	switch {
	case l.KB != nil:
		comp.KB = l.KB
	case comp.Settings.KnowledgeBase != "":
		db, err := sqlitekb.Open(ctx, comp.Settings.KnowledgeBase)
		if err != nil {
			return nil, fmt.Errorf("open knowledge base: %w", err)
		}
		snap, err := db.Load(ctx, proc, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load knowledge base: %w", err)
		}
		comp.KB = snap
		comp.db = db
	default:
		return nil, fmt.Errorf("no knowledge base configured: %w", internalerr.ErrInvalidConfig)
	}

	return comp, nil
}

// Close releases the knowledge base store.
func (c *Components) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// NewEngine returns a relatedness engine with its own cache. Every
// worker gets one engine.
func (c *Components) NewEngine() (*relatedness.Engine, error) {
	var cache relatedness.Cache = relatedness.NewMapCache()
	if size := c.Settings.Relatedness.CacheSize; size > 0 {
		lru, err := relatedness.NewCache(size)
		if err != nil {
			return nil, err
		}
		cache = lru
	}
	graphs, err := c.Settings.Graphs()
	if err != nil {
		return nil, err
	}
	return relatedness.New(c.KB, relatedness.Options{Cache: cache, Graphs: graphs}), nil
}

// DisambigOptions returns the configured disambiguation options.
func (c *Components) DisambigOptions() disambig.Options {
	d := c.Settings.Disambiguation
	opts := disambig.DefaultOptions()
	opts.MinSenseProbability = threshold(d.MinSenseProbability)
	opts.MinLinkProbability = threshold(d.MinLinkProbability)
	if d.MaxAnchorLength > 0 {
		opts.MaxAnchorLength = d.MaxAnchorLength
	}
	if d.MaxContextSize > 0 {
		opts.MaxContextSize = d.MaxContextSize
	}
	opts.ContextExclude = annotate.DateTitle
	opts.Quiet = c.Quiet
	opts.Logger = c.Logger
	return opts
}

// threshold keeps a configured 0 from falling back to the default.
func threshold(v float64) float64 {
	if v == 0 {
		return disambig.NoThreshold
	}
	return v
}

// TopicOptions returns the configured detector options. The stoplist is
// shared, the anchor cache is not.
func (c *Components) TopicOptions() topics.Options {
	return topics.Options{
		Strict:               c.Settings.Linking.Strict,
		AllowDisambiguations: c.Settings.Linking.AllowDisambiguations,
		Stopwords:            c.Stoplist,
	}
}

// LoadModels reads the configured classifier models into d and w. Either
// may be nil.
func (c *Components) LoadModels(d *disambig.Disambiguator, w *weighting.LinkWeighter) error {
	if d != nil && c.Settings.Disambiguation.Model != "" {
		if err := loadModel(c.Settings.Disambiguation.Model, d.LoadModel); err != nil {
			return fmt.Errorf("load disambiguation model: %w", err)
		}
	}
	if w != nil && c.Settings.Linking.Model != "" {
		if err := loadModel(c.Settings.Linking.Model, w.LoadModel); err != nil {
			return fmt.Errorf("load linking model: %w", err)
		}
	}
	return nil
}

func loadModel(path string, load func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return load(f)
}
