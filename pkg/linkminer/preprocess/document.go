// Package preprocess prepares marked-up documents for topic detection.
// Markup is blanked with spaces so that offsets into the preprocessed
// text are offsets into the original.
package preprocess

import (
	"regexp"
	"sort"
	"strings"
)

// Format is the markup language of a source document
type Format int

const (
	Plain Format = iota
	HTML
	Wiki
)

func (f Format) String() string {
	switch f {
	case HTML:
		return "html"
	case Wiki:
		return "wiki"
	default:
		return "plain"
	}
}

// ParseFormat parses a format name; "auto" and unknown names return
// false.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "text":
		return Plain, true
	case "html":
		return HTML, true
	case "wiki", "mediawiki":
		return Wiki, true
	}
	return Plain, false
}

var (
	htmlTagRE  = regexp.MustCompile(`<(.*?)>`)
	wikiLinkRE = regexp.MustCompile(`\[\[(.*?)\]\]`)
)

// Detect guesses the format of markup by counting HTML tags against wiki
// links. Text with neither is Plain.
func Detect(markup string) Format {
	html := len(htmlTagRE.FindAllStringIndex(markup, -1))
	wiki := len(wikiLinkRE.FindAllStringIndex(markup, -1))
	switch {
	case html == 0 && wiki == 0:
		return Plain
	case html > wiki:
		return HTML
	default:
		return Wiki
	}
}

// TitleResolver maps article titles to ids.
type TitleResolver interface {
	TitleToID(title string) (int, bool)
}

// RegionKind marks how a region boundary affects repeat tagging
type RegionKind int

const (
	RegionOpen RegionKind = iota
	RegionClose
	RegionSplit
)

// RegionTag is a region boundary at a byte offset of the original text.
type RegionTag struct {
	Offset int
	Kind   RegionKind
}

// Document is a preprocessed source document.
type Document struct {
	Format       Format
	Original     string
	Preprocessed string // same length as Original, markup blanked
	Context      string // text that only informs disambiguation
	Regions      []RegionTag
	Banned       map[int]bool
}

// NewPlain wraps text that needs no preprocessing.
func NewPlain(text string) *Document {
	return &Document{
		Format:       Plain,
		Original:     text,
		Preprocessed: text,
		Banned:       make(map[int]bool),
	}
}

// Ban stops id from becoming a topic.
func (d *Document) Ban(id int) {
	if d.Banned == nil {
		d.Banned = make(map[int]bool)
	}
	d.Banned[id] = true
}

// Preprocessor turns markup into a Document.
type Preprocessor interface {
	Preprocess(markup string) *Document
}

// For returns the preprocessor for a format. titles may be nil, in which
// case existing links are blanked but not banned.
func For(f Format, titles TitleResolver) Preprocessor {
	switch f {
	case HTML:
		return &HTMLPreprocessor{Titles: titles}
	case Wiki:
		return &WikiPreprocessor{Titles: titles}
	default:
		return PlainPreprocessor{}
	}
}

// PlainPreprocessor leaves text untouched.
type PlainPreprocessor struct{}

// Preprocess implements Preprocessor.
func (PlainPreprocessor) Preprocess(text string) *Document { return NewPlain(text) }

// RegionTracker reports which topics have already been tagged in the
// region around an offset. Offsets must be queried in increasing order.
type RegionTracker struct {
	tags  []RegionTag
	next  int
	stack []map[int]bool
}

// NewRegionTracker starts tracking at the beginning of the document.
func (d *Document) NewRegionTracker() *RegionTracker {
	tags := append([]RegionTag(nil), d.Regions...)
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Offset < tags[j].Offset })
	return &RegionTracker{
		tags:  tags,
		stack: []map[int]bool{make(map[int]bool)},
	}
}

// DoneIDs returns the mutable set of ids tagged in the region containing
// offset.
func (r *RegionTracker) DoneIDs(offset int) map[int]bool {
	for r.next < len(r.tags) && r.tags[r.next].Offset <= offset {
		switch r.tags[r.next].Kind {
		case RegionOpen:
			r.stack = append(r.stack, make(map[int]bool))
		case RegionClose:
			if len(r.stack) > 1 {
				r.stack = r.stack[:len(r.stack)-1]
			}
		case RegionSplit:
			r.stack[len(r.stack)-1] = make(map[int]bool)
		}
		r.next++
	}
	return r.stack[len(r.stack)-1]
}

// blanker copies text and overwrites spans with spaces.
type blanker struct {
	b []byte
}

func newBlanker(text string) *blanker {
	return &blanker{b: []byte(text)}
}

func (bl *blanker) blank(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(bl.b) {
		end = len(bl.b)
	}
	for i := start; i < end; i++ {
		if bl.b[i] != '\n' {
			bl.b[i] = ' '
		}
	}
}

func (bl *blanker) String() string { return string(bl.b) }
