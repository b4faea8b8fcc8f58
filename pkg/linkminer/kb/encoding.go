package kb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Compact link lists are stored as comma separated ids ("3,7,9") and
// id:count pairs ("3:12,7:4").

// EncodeIDs renders ids in compact form.
func EncodeIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// DecodeIDs parses a compact id list and returns it sorted.
func DecodeIDs(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("decode id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// EncodeOutLinks renders out-links in compact form.
func EncodeOutLinks(links []OutLink) string {
	parts := make([]string, len(links))
	for i, l := range links {
		parts[i] = strconv.Itoa(l.ID) + ":" + strconv.FormatInt(l.Count, 10)
	}
	return strings.Join(parts, ",")
}

// DecodeOutLinks parses a compact out-link list and returns it sorted by id.
func DecodeOutLinks(s string) ([]OutLink, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	links := make([]OutLink, 0, len(fields))
	for _, f := range fields {
		idPart, countPart, ok := strings.Cut(strings.TrimSpace(f), ":")
		if !ok {
			return nil, fmt.Errorf("decode out-link %q: missing count", f)
		}
		id, err := strconv.Atoi(idPart)
		if err != nil {
			return nil, fmt.Errorf("decode out-link %q: %w", f, err)
		}
		count, err := strconv.ParseInt(countPart, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode out-link %q: %w", f, err)
		}
		links = append(links, OutLink{ID: id, Count: count})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, nil
}

// SortSenses orders senses descending by prior, then ascending by id.
func SortSenses(senses []Sense) {
	sort.SliceStable(senses, func(i, j int) bool {
		if senses[i].Prior != senses[j].Prior {
			return senses[i].Prior > senses[j].Prior
		}
		return senses[i].ID < senses[j].ID
	})
}
