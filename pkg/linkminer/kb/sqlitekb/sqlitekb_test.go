package sqlitekb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
)

func openFixture(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`INSERT INTO pages (id, title, kind) VALUES (1, 'Plane (tool)', 'article'), (2, 'Fixed-wing aircraft', 'article'), (3, 'Plane', 'disambiguation')`,
		`INSERT INTO redirects (title, target) VALUES ('Aeroplane', 'Fixed-wing aircraft')`,
		`INSERT INTO anchors (text, link_count, occ_count) VALUES ('plane', 80, 200), ('aeroplane', 0, 50)`,
		`INSERT INTO anchor_senses (text, page_id, count) VALUES ('plane', 1, 20), ('plane', 2, 50), ('plane', 3, 10), ('aeroplane', 2, 40)`,
		`INSERT INTO page_links (page_id, in_links, out_links) VALUES (1, '5,4', '2:3'), (2, 'x,y', '1:2,oops')`,
		`INSERT INTO generality (page_id, value) VALUES (1, 0.25)`,
		`INSERT INTO markup (page_id, content) VALUES (1, 'A [[plane]] smooths wood.')`,
		`INSERT INTO stats (key, value) VALUES ('total_articles', 1000)`,
	}
	for _, stmt := range stmts {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return db
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t)

	snap, err := db.Load(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if snap.TotalArticles() != 1000 {
		t.Errorf("expected 1000 articles, got %d", snap.TotalArticles())
	}

	stats, ok := snap.Anchor("plane")
	if !ok || len(stats.Senses) != 3 {
		t.Fatalf("expected 3 senses for plane, got %+v", stats)
	}
	if stats.Senses[0].ID != 2 || stats.Senses[2].Kind != kb.KindDisambiguation {
		t.Errorf("unexpected sense order %+v", stats.Senses)
	}

	// link_count 0 falls back to the sum of sense counts
	aero, _ := snap.Anchor("aeroplane")
	if aero.LinkCount != 40 || aero.Senses[0].Prior != 1 {
		t.Errorf("unexpected aeroplane stats %+v", aero)
	}

	if id, ok := snap.TitleToID("Aeroplane"); !ok || id != 2 {
		t.Errorf("expected redirect to 2, got %d, %v", id, ok)
	}
	if g, ok := snap.Generality(1); !ok || g != 0.25 {
		t.Errorf("unexpected generality %v, %v", g, ok)
	}
}

func TestMalformedLinkListsMeanNoLinks(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t)

	snap, err := db.Load(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := snap.InLinks(1); len(got) != 2 || got[0] != 4 {
		t.Errorf("expected sorted in-links [4 5], got %v", got)
	}
	if got := snap.InLinks(2); len(got) != 0 {
		t.Errorf("expected no in-links for malformed list, got %v", got)
	}
	if got := snap.OutLinks(2); len(got) != 0 {
		t.Errorf("expected no out-links for malformed list, got %v", got)
	}
	if g := snap.Graphs(); !g.InLinks || !g.OutLinks {
		t.Errorf("expected both graphs, got %+v", g)
	}
}

func TestArticleMarkup(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t)

	snap, err := db.Load(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	m, err := snap.ArticleMarkup(ctx, 1)
	if err != nil || m == "" {
		t.Fatalf("ArticleMarkup: %q, %v", m, err)
	}
	if _, err := snap.ArticleMarkup(ctx, 2); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
