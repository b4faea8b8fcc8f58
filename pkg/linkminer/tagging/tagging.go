// Package tagging resolves overlapping topic mentions and writes links
// into the original document.
package tagging

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	"github.com/cognicore/linkminer/pkg/linkminer/annotate"
	"github.com/cognicore/linkminer/pkg/linkminer/preprocess"
)

// RepeatMode controls whether repeated mentions are tagged
type RepeatMode int

const (
	// All tags every mention.
	All RepeatMode = iota
	// First tags only the first mention of a topic in the document.
	First
	// FirstInRegion tags the first mention of a topic in each region.
	FirstInRegion
)

func (m RepeatMode) String() string {
	switch m {
	case All:
		return "all"
	case First:
		return "first"
	default:
		return "first_in_region"
	}
}

// ParseRepeatMode parses the String form of a mode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return All, nil
	case "first":
		return First, nil
	case "first_in_region", "region", "":
		return FirstInRegion, nil
	}
	return All, fmt.Errorf("unknown repeat mode %q", s)
}

// Renderer writes the link for one mention. anchor is the mention's text
// in the original document.
type Renderer interface {
	Render(anchor string, topic *annotate.Topic) string
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(anchor string, topic *annotate.Topic) string

// Render implements Renderer.
func (f RenderFunc) Render(anchor string, topic *annotate.Topic) string { return f(anchor, topic) }

// Wiki renders MediaWiki links.
type Wiki struct{}

// Render implements Renderer.
func (Wiki) Render(anchor string, topic *annotate.Topic) string {
	if strings.EqualFold(anchor, topic.Title) {
		return "[[" + anchor + "]]"
	}
	return "[[" + topic.Title + "|" + anchor + "]]"
}

// HTML renders anchors pointing at BaseURL/wiki/Title.
type HTML struct {
	BaseURL string
}

// Render implements Renderer.
func (h HTML) Render(anchor string, topic *annotate.Topic) string {
	target := strings.TrimRight(h.BaseURL, "/") + "/wiki/" + url.PathEscape(strings.ReplaceAll(topic.Title, " ", "_"))
	return `<a href="` + html.EscapeString(target) + `">` + anchor + `</a>`
}

// Resolve returns the mentions of topics weighing at least minWeight,
// ordered by start, longest first, then id, with every mention that
// overlaps an earlier kept one removed.
func Resolve(topics []*annotate.Topic, minWeight float64) []annotate.TopicReference {
	var refs []annotate.TopicReference
	for _, t := range topics {
		if t.Weight < minWeight {
			continue
		}
		for _, pos := range t.Positions() {
			refs = append(refs, annotate.TopicReference{TopicID: t.ID, Position: pos})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i].Position, refs[j].Position
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		return refs[i].TopicID < refs[j].TopicID
	})

	kept := refs[:0]
	for _, r := range refs {
		if len(kept) > 0 && kept[len(kept)-1].Position.Overlaps(r.Position) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// Tag writes a link for the selected mentions of topics into the
// original text of doc.
func Tag(doc *preprocess.Document, topics []*annotate.Topic, minWeight float64, mode RepeatMode, r Renderer) string {
	byID := make(map[int]*annotate.Topic, len(topics))
	for _, t := range topics {
		byID[t.ID] = t
	}

	text := doc.Original
	regions := doc.NewRegionTracker()
	done := make(map[int]bool)

	var sb strings.Builder
	last := 0
	for _, ref := range Resolve(topics, minWeight) {
		start, end := ref.Position.Start, ref.Position.End
		if start < last || end > len(text) {
			continue
		}
		if mode == FirstInRegion {
			done = regions.DoneIDs(start)
		}
		if mode != All && done[ref.TopicID] {
			continue
		}
		done[ref.TopicID] = true

		sb.WriteString(text[last:start])
		sb.WriteString(r.Render(text[start:end], byID[ref.TopicID]))
		last = end
	}
	sb.WriteString(text[last:])
	return sb.String()
}
