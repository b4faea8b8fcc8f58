package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/tagging"
)

// Settings is the YAML configuration of a linkminer deployment
type Settings struct {
	KnowledgeBase string   `yaml:"knowledge_base"` // sqlite snapshot path
	Stoplist      string   `yaml:"stoplist"`       // YAML file with a terms list
	Processors    []string `yaml:"processors"`     // e.g. casefold, stem:english

	Disambiguation Disambiguation `yaml:"disambiguation"`
	Linking        Linking        `yaml:"linking"`
	Relatedness    Relatedness    `yaml:"relatedness"`
	Tagging        Tagging        `yaml:"tagging"`
}

// Disambiguation holds sense selection thresholds. A probability of 0
// turns that threshold off.
type Disambiguation struct {
	MinSenseProbability float64 `yaml:"min_sense_probability"`
	MinLinkProbability  float64 `yaml:"min_link_probability"`
	MaxAnchorLength     int     `yaml:"max_anchor_length"`
	MaxContextSize      int     `yaml:"max_context_size"`
	Model               string  `yaml:"model"`
}

// Linking holds topic detection and weighting settings
type Linking struct {
	Strict               bool   `yaml:"strict"`
	AllowDisambiguations bool   `yaml:"allow_disambiguations"`
	Model                string `yaml:"model"`
}

// Relatedness selects the link graphs and the memo cache size. A cache
// size of zero means an unbounded per-worker map.
type Relatedness struct {
	CacheSize int      `yaml:"cache_size"`
	Graphs    []string `yaml:"graphs"` // inlinks, outlinks
}

// Tagging controls how links are written back
type Tagging struct {
	Mode      string  `yaml:"mode"`
	MinWeight float64 `yaml:"min_weight"`
	BaseURL   string  `yaml:"base_url"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() *Settings {
	return &Settings{
		Processors: []string{"casefold"},
		Disambiguation: Disambiguation{
			MinSenseProbability: 0.02,
			MinLinkProbability:  0.03,
			MaxAnchorLength:     20,
			MaxContextSize:      25,
		},
		Relatedness: Relatedness{Graphs: []string{"inlinks", "outlinks"}},
		Tagging: Tagging{
			Mode:      tagging.FirstInRegion.String(),
			MinWeight: 0.5,
			BaseURL:   "https://en.wikipedia.org",
		},
	}
}

// LoadSettings reads settings from a YAML file. Keys missing from the
// file keep their defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks ranges and names.
func (s *Settings) Validate() error {
	d := s.Disambiguation
	switch {
	case d.MinSenseProbability < 0 || d.MinSenseProbability > 1:
		return fmt.Errorf("min_sense_probability %v: %w", d.MinSenseProbability, internalerr.ErrInvalidConfig)
	case d.MinLinkProbability < 0 || d.MinLinkProbability > 1:
		return fmt.Errorf("min_link_probability %v: %w", d.MinLinkProbability, internalerr.ErrInvalidConfig)
	case d.MaxAnchorLength < 0 || d.MaxContextSize < 0:
		return fmt.Errorf("negative anchor or context size: %w", internalerr.ErrInvalidConfig)
	case s.Relatedness.CacheSize < 0:
		return fmt.Errorf("cache_size %d: %w", s.Relatedness.CacheSize, internalerr.ErrInvalidConfig)
	}
	if _, err := s.Graphs(); err != nil {
		return err
	}
	if _, err := s.RepeatMode(); err != nil {
		return err
	}
	return nil
}

// Graphs returns the configured graph selection. An empty list selects
// every graph.
func (s *Settings) Graphs() (*kb.GraphSet, error) {
	if len(s.Relatedness.Graphs) == 0 {
		return nil, nil
	}
	g := &kb.GraphSet{}
	for _, name := range s.Relatedness.Graphs {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "inlinks", "in":
			g.InLinks = true
		case "outlinks", "out":
			g.OutLinks = true
		default:
			return nil, fmt.Errorf("graph %q: %w", name, internalerr.ErrInvalidConfig)
		}
	}
	return g, nil
}

// RepeatMode returns the configured tagging mode.
func (s *Settings) RepeatMode() (tagging.RepeatMode, error) {
	m, err := tagging.ParseRepeatMode(s.Tagging.Mode)
	if err != nil {
		return m, fmt.Errorf("%v: %w", err, internalerr.ErrInvalidConfig)
	}
	return m, nil
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
