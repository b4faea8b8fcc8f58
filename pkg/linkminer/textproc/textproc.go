package textproc

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Processor normalizes anchor text before it is looked up.
// The same processor must be used when a snapshot is built and queried.
type Processor interface {
	Name() string
	Process(text string) string
}

// CaseFolder applies Unicode NFC normalization and full case folding.
type CaseFolder struct{}

// Name implements Processor.
func (CaseFolder) Name() string { return "casefold" }

// Process implements Processor.
func (CaseFolder) Process(text string) string {
	return cases.Fold().String(norm.NFC.String(text))
}

// Stemmer reduces every word of a phrase to its Snowball stem.
type Stemmer struct {
	Language string
}

// NewStemmer returns a stemmer for a Snowball language.
func NewStemmer(language string) (*Stemmer, error) {
	if language == "" {
		language = "english"
	}
	if _, err := snowball.Stem("test", language, true); err != nil {
		return nil, fmt.Errorf("stemmer %q: %w", language, err)
	}
	return &Stemmer{Language: language}, nil
}

// Name implements Processor.
func (s *Stemmer) Name() string { return "stem_" + s.Language }

// Process implements Processor.
func (s *Stemmer) Process(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		stemmed, err := snowball.Stem(w, s.Language, true)
		if err != nil {
			continue
		}
		words[i] = stemmed
	}
	return strings.Join(words, " ")
}

// Chain applies processors in order.
type Chain []Processor

// Name implements Processor.
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, p := range c {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

// Process implements Processor.
func (c Chain) Process(text string) string {
	for _, p := range c {
		text = p.Process(text)
	}
	return text
}

// Apply runs p over text, treating a nil processor as the identity.
func Apply(p Processor, text string) string {
	if p == nil {
		return text
	}
	return p.Process(text)
}

// FromNames builds a processor from configuration names such as
// "casefold" or "stem:english". An empty list yields nil.
func FromNames(names []string) (Processor, error) {
	var chain Chain
	for _, name := range names {
		kind, arg, _ := strings.Cut(strings.TrimSpace(name), ":")
		switch kind {
		case "casefold":
			chain = append(chain, CaseFolder{})
		case "stem":
			st, err := NewStemmer(arg)
			if err != nil {
				return nil, err
			}
			chain = append(chain, st)
		case "":
		default:
			return nil, fmt.Errorf("unknown text processor %q", name)
		}
	}
	switch len(chain) {
	case 0:
		return nil, nil
	case 1:
		return chain[0], nil
	}
	return chain, nil
}
