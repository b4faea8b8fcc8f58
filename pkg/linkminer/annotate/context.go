package annotate

import (
	"regexp"
	"sort"

	"github.com/cognicore/linkminer/pkg/linkminer/kb"
	"github.com/cognicore/linkminer/pkg/linkminer/relatedness"
)

// ExcludeFunc reports whether a page must be kept out of a Context.
type ExcludeFunc func(kb.Page) bool

var monthDay = regexp.MustCompile(`^(January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}$`)

// DateTitle matches calendar day pages such as "July 4".
func DateTitle(p kb.Page) bool {
	return monthDay.MatchString(p.Title)
}

// ContextMember is a sense retained as disambiguation evidence
type ContextMember struct {
	Sense  kb.Sense
	Weight float64
}

// Context summarizes the unambiguous concepts of a document. It is
// immutable once built.
type Context struct {
	members []ContextMember
	quality float64
	engine  *relatedness.Engine
}

// NewContext builds a context from confident anchors. Each anchor
// contributes its top sense. A sense is weighted by its prior and its
// average relatedness to the other senses; the heaviest maxSize senses
// are kept. exclude may be nil.
func NewContext(anchors []*Anchor, engine *relatedness.Engine, maxSize int, exclude ExcludeFunc) *Context {
	seen := make(map[int]int)
	var senses []kb.Sense
	for _, a := range anchors {
		if len(a.Senses) == 0 {
			continue
		}
		s := a.Senses[0]
		if exclude != nil && exclude(s.Page) {
			continue
		}
		if i, ok := seen[s.ID]; ok {
			if s.Prior > senses[i].Prior {
				senses[i] = s
			}
			continue
		}
		seen[s.ID] = len(senses)
		senses = append(senses, s)
	}

	members := make([]ContextMember, 0, len(senses))
	for i, s := range senses {
		avg := 0.0
		if len(senses) > 1 {
			for j, other := range senses {
				if i == j {
					continue
				}
				avg += engine.Relatedness(s.ID, other.ID)
			}
			avg /= float64(len(senses) - 1)
		}

		w := (s.Prior + 2*avg) / 3
		if w <= 0 {
			continue
		}
		members = append(members, ContextMember{Sense: s, Weight: w})
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].Weight != members[j].Weight {
			return members[i].Weight > members[j].Weight
		}
		return members[i].Sense.ID < members[j].Sense.ID
	})
	if maxSize >= 0 && len(members) > maxSize {
		members = members[:maxSize]
	}

	c := &Context{members: members, engine: engine}
	for _, m := range members {
		c.quality += m.Weight
	}
	return c
}

// Quality is the sum of member weights; zero only for an empty context.
func (c *Context) Quality() float64 { return c.quality }

// Size returns the number of members.
func (c *Context) Size() int { return len(c.members) }

// Members returns a copy of the ranked members.
func (c *Context) Members() []ContextMember {
	return append([]ContextMember(nil), c.members...)
}

// Contains reports whether id is a context member.
func (c *Context) Contains(id int) bool {
	for _, m := range c.members {
		if m.Sense.ID == id {
			return true
		}
	}
	return false
}

// RelatednessTo returns the weighted average relatedness of id to the
// members, or 0 when the context carries no evidence.
func (c *Context) RelatednessTo(id int) float64 {
	if len(c.members) == 0 || c.quality == 0 {
		return 0
	}

	sum := 0.0
	for _, m := range c.members {
		sum += c.engine.Relatedness(id, m.Sense.ID) * m.Weight
	}
	return sum / c.quality
}
