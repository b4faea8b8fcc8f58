package textproc

import "testing"

func TestCaseFolder(t *testing.T) {
	got := CaseFolder{}.Process("Straße NEW York")
	if got != "strasse new york" {
		t.Errorf("expected folded text, got %q", got)
	}
}

func TestStemmer(t *testing.T) {
	st, err := NewStemmer("english")
	if err != nil {
		t.Fatalf("NewStemmer: %v", err)
	}
	if got := st.Process("running  dogs"); got != "run dog" {
		t.Errorf("expected %q, got %q", "run dog", got)
	}
	if _, err := NewStemmer("klingon"); err == nil {
		t.Error("expected error for unsupported language")
	}
}

func TestFromNames(t *testing.T) {
	p, err := FromNames([]string{"casefold", "stem:english"})
	if err != nil {
		t.Fatalf("FromNames: %v", err)
	}
	if p.Name() != "casefold+stem_english" {
		t.Errorf("unexpected name %q", p.Name())
	}
	if got := p.Process("Running Dogs"); got != "run dog" {
		t.Errorf("expected %q, got %q", "run dog", got)
	}

	p, err = FromNames(nil)
	if err != nil || p != nil {
		t.Errorf("expected nil processor, got %v, %v", p, err)
	}
	if Apply(p, "Keep") != "Keep" {
		t.Error("nil processor should be the identity")
	}

	if _, err := FromNames([]string{"soundex"}); err == nil {
		t.Error("expected error for unknown processor")
	}
}
