package sqlitekb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/kb/memkb"
	"github.com/cognicore/linkminer/pkg/linkminer/textproc"
)

// DB is a corpus snapshot stored in SQLite
type DB struct {
	db *sql.DB
}

// Open opens a SQLite snapshot with WAL mode enabled and makes sure the
// schema exists.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'article'
);

CREATE INDEX IF NOT EXISTS idx_pages_title ON pages(title);

CREATE TABLE IF NOT EXISTS redirects (
	title TEXT PRIMARY KEY,
	target TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS anchors (
	text TEXT PRIMARY KEY,
	link_count INTEGER NOT NULL DEFAULT 0,
	occ_count INTEGER NOT NULL DEFAULT -1
);

CREATE TABLE IF NOT EXISTS anchor_senses (
	text TEXT NOT NULL,
	page_id INTEGER NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(text, page_id)
);

CREATE TABLE IF NOT EXISTS page_links (
	page_id INTEGER PRIMARY KEY,
	in_links TEXT,
	out_links TEXT
);

CREATE TABLE IF NOT EXISTS generality (
	page_id INTEGER PRIMARY KEY,
	value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS markup (
	page_id INTEGER PRIMARY KEY,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stats (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Snapshot is an in-memory copy of the graph tables. Article markup is
// still read from the database on demand.
type Snapshot struct {
	*memkb.KB
	db *DB
}

// Load reads pages, anchors, links and generality into memory. Anchor
// text is stored raw and passed through p as it is loaded. Malformed
// compact link lists are logged and treated as having no links.
func (d *DB) Load(ctx context.Context, p textproc.Processor, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := memkb.New(p)

	if err := d.loadPages(ctx, m); err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	if err := d.loadRedirects(ctx, m); err != nil {
		return nil, fmt.Errorf("load redirects: %w", err)
	}
	if err := d.loadAnchors(ctx, m); err != nil {
		return nil, fmt.Errorf("load anchors: %w", err)
	}
	if err := d.loadLinks(ctx, m, logger); err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	if err := d.loadGenerality(ctx, m); err != nil {
		return nil, fmt.Errorf("load generality: %w", err)
	}

	var total int64
	err := d.db.QueryRowContext(ctx, "SELECT value FROM stats WHERE key = 'total_articles'").Scan(&total)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load stats: %w", err)
	default:
		m.SetTotalArticles(total)
	}

	return &Snapshot{KB: m, db: d}, nil
}

func (d *DB) loadPages(ctx context.Context, m *memkb.KB) error {
	rows, err := d.db.QueryContext(ctx, "SELECT id, title, kind FROM pages")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p    kb.Page
			kind string
		)
		if err := rows.Scan(&p.ID, &p.Title, &kind); err != nil {
			return err
		}
		if p.Kind, err = kb.ParsePageKind(kind); err != nil {
			return fmt.Errorf("page %d: %w", p.ID, err)
		}
		m.AddPage(p)
	}
	return rows.Err()
}

func (d *DB) loadRedirects(ctx context.Context, m *memkb.KB) error {
	rows, err := d.db.QueryContext(ctx, "SELECT title, target FROM redirects")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var title, target string
		if err := rows.Scan(&title, &target); err != nil {
			return err
		}
		m.AddRedirect(title, target)
	}
	return rows.Err()
}

func (d *DB) loadAnchors(ctx context.Context, m *memkb.KB) error {
	type counts struct {
		link, occ int64
	}
	anchors := make(map[string]counts)

	rows, err := d.db.QueryContext(ctx, "SELECT text, link_count, occ_count FROM anchors")
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			text string
			c    counts
		)
		if err := rows.Scan(&text, &c.link, &c.occ); err != nil {
			rows.Close()
			return err
		}
		anchors[text] = c
	}
	if err := rows.Close(); err != nil {
		return err
	}

	senses := make(map[string][]memkb.SenseCount)
	rows, err = d.db.QueryContext(ctx, "SELECT text, page_id, count FROM anchor_senses ORDER BY text, count DESC, page_id")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			text string
			sc   memkb.SenseCount
		)
		if err := rows.Scan(&text, &sc.ID, &sc.Count); err != nil {
			return err
		}
		senses[text] = append(senses[text], sc)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for text, c := range anchors {
		m.SetAnchor(text, c.link, c.occ, senses[text])
	}
	return nil
}

func (d *DB) loadLinks(ctx context.Context, m *memkb.KB, logger *slog.Logger) error {
	rows, err := d.db.QueryContext(ctx, "SELECT page_id, in_links, out_links FROM page_links")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int
			in, out sql.NullString
		)
		if err := rows.Scan(&id, &in, &out); err != nil {
			return err
		}

		if in.Valid {
			ids, err := kb.DecodeIDs(in.String)
			if err != nil {
				logger.Warn("Ignoring malformed in-link list", "page", id, "error", err)
				ids = nil
			}
			m.SetInLinks(id, ids)
		}
		if out.Valid {
			links, err := kb.DecodeOutLinks(out.String)
			if err != nil {
				logger.Warn("Ignoring malformed out-link list", "page", id, "error", err)
				links = nil
			}
			m.SetOutLinks(id, links)
		}
	}
	return rows.Err()
}

func (d *DB) loadGenerality(ctx context.Context, m *memkb.KB) error {
	rows, err := d.db.QueryContext(ctx, "SELECT page_id, value FROM generality")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int
			g  float64
		)
		if err := rows.Scan(&id, &g); err != nil {
			return err
		}
		m.SetGenerality(id, g)
	}
	return rows.Err()
}

// ArticleMarkup reads markup from the database.
func (s *Snapshot) ArticleMarkup(ctx context.Context, id int) (string, error) {
	var content string
	err := s.db.db.QueryRowContext(ctx, "SELECT content FROM markup WHERE page_id = ?", id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("markup for article %d: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("markup for article %d: %w: %v", id, internalerr.ErrStoreUnavailable, err)
	}
	return content, nil
}

var _ kb.KnowledgeBase = (*Snapshot)(nil)
