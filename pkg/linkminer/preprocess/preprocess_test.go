package preprocess

import (
	"strings"
	"testing"

	"github.com/cognicore/linkminer/pkg/linkminer/kb/kbtest"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		markup string
		want   Format
	}{
		{"just some text", Plain},
		{"<p>hello <b>world</b></p>", HTML},
		{"a [[Plane]] and <br> [[Tool]]", Wiki},
		{"a [[Plane]] <b>x</b>", HTML},
	}
	for _, tt := range tests {
		if got := Detect(tt.markup); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.markup, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{Plain, HTML, Wiki} {
		got, ok := ParseFormat(f.String())
		if !ok || got != f {
			t.Errorf("format %v does not parse back", f)
		}
	}
	if _, ok := ParseFormat("auto"); ok {
		t.Error("auto is not a concrete format")
	}
}

func checkAligned(t *testing.T, doc *Document, phrases ...string) {
	t.Helper()
	if len(doc.Preprocessed) != len(doc.Original) {
		t.Fatalf("preprocessed length %d differs from original %d", len(doc.Preprocessed), len(doc.Original))
	}
	for _, p := range phrases {
		i := strings.Index(doc.Original, p)
		if i < 0 || doc.Preprocessed[i:i+len(p)] != p {
			t.Errorf("expected %q kept at offset %d in %q", p, i, doc.Preprocessed)
		}
	}
}

func TestHTMLPreprocessor(t *testing.T) {
	markup := `<html><head><title>Woodworking tools</title><style>p { color: red }</style>` +
		`<meta name="description" content="On planes"></head>` +
		`<body><p>The plane is sharp.</p>` +
		`<p>A <a href="https://en.wikipedia.org/wiki/Plane_(tool)">plane</a> again<br>and again</p>` +
		`<!-- a comment --></body></html>`

	doc := (&HTMLPreprocessor{Titles: kbtest.New()}).Preprocess(markup)
	checkAligned(t, doc, "The plane is sharp.", "again", "and again")

	for _, gone := range []string{"<p>", "color", "Woodworking", "comment", ">plane<"} {
		if strings.Contains(doc.Preprocessed, gone) {
			t.Errorf("expected %q blanked in %q", gone, doc.Preprocessed)
		}
	}
	for _, ctx := range []string{"Woodworking tools", "On planes", "plane"} {
		if !strings.Contains(doc.Context, ctx) {
			t.Errorf("expected %q in context %q", ctx, doc.Context)
		}
	}
	if !doc.Banned[kbtest.PlaneTool] {
		t.Error("expected the linked article to be banned")
	}

	var opens, closes, splits int
	for _, r := range doc.Regions {
		switch r.Kind {
		case RegionOpen:
			opens++
		case RegionClose:
			closes++
		case RegionSplit:
			splits++
		}
	}
	if opens != 3 || closes != 3 || splits != 1 {
		t.Errorf("expected 3 opens, 3 closes and 1 split, got %d/%d/%d", opens, closes, splits)
	}
}

func TestWikiPreprocessor(t *testing.T) {
	markup := "{{Infobox|x=1}}The '''plane''' is a [[Plane (tool)|tool]].\n" +
		"[[File:P.jpg|thumb|A [[plane]] here]]\n" +
		"== Use ==\n" +
		"A plane <ref>cite</ref>cuts [http://example.org wood]."

	doc := (&WikiPreprocessor{Titles: kbtest.New()}).Preprocess(markup)
	checkAligned(t, doc, "The", "plane", "Use", "cuts", "wood")

	for _, gone := range []string{"Infobox", "'''", "[[", "tool", "thumb", "==", "cite", "http"} {
		if strings.Contains(doc.Preprocessed, gone) {
			t.Errorf("expected %q blanked in %q", gone, doc.Preprocessed)
		}
	}
	if !strings.Contains(doc.Context, "tool") {
		t.Errorf("expected link anchor in context %q", doc.Context)
	}
	if !doc.Banned[kbtest.PlaneTool] {
		t.Error("expected the linked article to be banned")
	}
	if len(doc.Regions) != 1 || doc.Regions[0].Kind != RegionSplit {
		t.Errorf("expected one split at the heading, got %+v", doc.Regions)
	}
}

func TestPlainPreprocessor(t *testing.T) {
	doc := For(Plain, nil).Preprocess("a plane")
	if doc.Preprocessed != "a plane" || doc.Original != "a plane" || len(doc.Regions) != 0 {
		t.Errorf("expected identity, got %+v", doc)
	}
	doc.Ban(3)
	if !doc.Banned[3] {
		t.Error("expected ban to be recorded")
	}
}

func TestRegionTracker(t *testing.T) {
	doc := &Document{Regions: []RegionTag{
		{Offset: 30, Kind: RegionClose},
		{Offset: 10, Kind: RegionOpen},
		{Offset: 20, Kind: RegionSplit},
	}}
	r := doc.NewRegionTracker()

	root := r.DoneIDs(0)
	root[1] = true

	inner := r.DoneIDs(15)
	if inner[1] {
		t.Error("opening a region should start a fresh set")
	}
	inner[2] = true

	split := r.DoneIDs(25)
	if split[2] {
		t.Error("splitting a region should start a fresh set")
	}

	if back := r.DoneIDs(35); !back[1] {
		t.Error("closing a region should return to the enclosing set")
	}
}
