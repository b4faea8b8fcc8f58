// Package corpus loads the article sets used to train and test the
// classifiers.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
)

// Entry is one line of a JSONL article set
type Entry struct {
	ID    int    `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// TitleResolver maps article titles to ids.
type TitleResolver interface {
	TitleToID(title string) (int, bool)
}

// LoadFile reads an article set from path. See Load.
func LoadFile(path string, titles TitleResolver, logger *slog.Logger) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ids, err := Load(f, titles, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, nil
}

// Load reads article ids, one per line. A line is a JSON entry, a bare
// id or a bare title. Titles need a resolver. Blank lines and lines
// starting with '#' are ignored; malformed lines and unknown titles are
// logged and skipped. Repeated ids are kept once, in first-seen order.
func Load(r io.Reader, titles TitleResolver, logger *slog.Logger) ([]int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var ids []int
	seen := make(map[int]bool)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, err := parseLine(line, titles)
		if err != nil {
			logger.Warn("skipping article set line", "line", n, "err", err)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("no valid articles: %w", internalerr.ErrInvalidInput)
	}
	return ids, nil
}

func parseLine(line string, titles TitleResolver) (int, error) {
	if strings.HasPrefix(line, "{") {
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return 0, err
		}
		if e.ID > 0 {
			return e.ID, nil
		}
		return resolve(e.Title, titles)
	}
	if id, err := strconv.Atoi(line); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("invalid id %d", id)
		}
		return id, nil
	}
	return resolve(line, titles)
}

func resolve(title string, titles TitleResolver) (int, error) {
	if title == "" {
		return 0, fmt.Errorf("entry has neither id nor title")
	}
	if titles == nil {
		return 0, fmt.Errorf("cannot resolve title %q without a knowledge base", title)
	}
	id, ok := titles.TitleToID(title)
	if !ok {
		return 0, fmt.Errorf("unknown title %q", title)
	}
	return id, nil
}

// Split shuffles ids with a fixed seed and returns the first
// testFraction of them as the test set. The same inputs always give the
// same split.
func Split(ids []int, testFraction float64, seed uint64) (train, test []int) {
	shuffled := append([]int(nil), ids...)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	testFraction = min(max(testFraction, 0), 1)
	n := int(float64(len(shuffled))*testFraction + 0.5)
	return shuffled[n:], shuffled[:n]
}

// Write stores ids as JSONL entries.
func Write(w io.Writer, ids []int) error {
	enc := json.NewEncoder(w)
	for _, id := range ids {
		if err := enc.Encode(Entry{ID: id}); err != nil {
			return err
		}
	}
	return nil
}
