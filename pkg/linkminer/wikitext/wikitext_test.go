package wikitext

import (
	"strings"
	"testing"
)

const article = `{{Infobox tool|name=Plane}}
A '''hand plane''' is a [[woodworking]] tool used by a [[Carpentry|carpenter]] to shape wood.<ref>Smith 2001</ref> It is unlike a [[Fixed-wing aircraft|plane]] that flies.

[[File:Plane.jpg|thumb|A [[plane (tool)|plane]] on a bench]]
== History ==
Planes were used in [[ancient_Rome#Crafts|Rome]]. See [http://example.org the museum].
{| class="wikitable"
| a || b
|}
== See also ==
* [[Spokeshave]]
== References ==
{{reflist}}
[[Category:Woodworking tools]]
[[de:Hobel]]
`

func TestLinks(t *testing.T) {
	links := Links(article)

	want := []Link{
		{Target: "Woodworking", Anchor: "woodworking"},
		{Target: "Carpentry", Anchor: "carpenter"},
		{Target: "Fixed-wing aircraft", Anchor: "plane"},
		{Target: "Plane (tool)", Anchor: "plane"},
		{Target: "Ancient Rome", Anchor: "Rome"},
		{Target: "Spokeshave", Anchor: "Spokeshave"},
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %+v", len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d: expected %+v, got %+v", i, want[i], links[i])
		}
	}
}

func TestLinksLastPipeWins(t *testing.T) {
	links := Links("[[A|b|c]]")
	if len(links) != 1 || links[0].Target != "A|b" || links[0].Anchor != "c" {
		t.Errorf("unexpected %+v", links)
	}
}

func TestLinksOnly(t *testing.T) {
	got := LinksOnly(article, All)

	for _, gone := range []string{"{{", "<ref>", "Smith", "File:", "Category:", "de:Hobel", "'''", "wikitable", "Spokeshave", "== History"} {
		if strings.Contains(got, gone) {
			t.Errorf("expected %q removed from:\n%s", gone, got)
		}
	}
	for _, kept := range []string{"[[woodworking]]", "[[Carpentry|carpenter]]", "History", "the museum", "[[ancient_Rome#Crafts|Rome]]"} {
		if !strings.Contains(got, kept) {
			t.Errorf("expected %q kept in:\n%s", kept, got)
		}
	}
	if strings.Contains(got, "\n\n\n") {
		t.Error("expected runs of blank lines to be collapsed")
	}
}

func TestClean(t *testing.T) {
	got := Clean(article, FirstParagraph)
	want := "A hand plane is a woodworking tool used by a carpenter to shape wood. It is unlike a plane that flies."
	if got != want {
		t.Errorf("expected\n%q\ngot\n%q", want, got)
	}
}

func TestFirstSentence(t *testing.T) {
	got := Clean(article, FirstSentence)
	if !strings.HasPrefix(got, "A hand plane is a woodworking tool") {
		t.Errorf("unexpected first sentence %q", got)
	}
	if strings.Contains(got, "flies") {
		t.Errorf("expected only the first sentence, got %q", got)
	}
}

func TestStripLinks(t *testing.T) {
	if got := StripLinks("a [[B|c]] and [[d]]"); got != "a c and d" {
		t.Errorf("unexpected %q", got)
	}
}

func TestParseSnippetMode(t *testing.T) {
	for _, m := range []SnippetMode{All, FirstSentence, FirstParagraph} {
		if ParseSnippetMode(m.String()) != m {
			t.Errorf("mode %v does not parse back", m)
		}
	}
	if ParseSnippetMode("bogus") != All {
		t.Error("unknown names should map to All")
	}
}
