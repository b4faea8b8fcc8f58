package annotate

import "fmt"

// Position is a half-open byte span [Start,End) in the original text.
type Position struct {
	Start int
	End   int
}

// Overlaps reports whether two spans share at least one byte.
func (p Position) Overlaps(o Position) bool {
	return p.Start < o.End && o.Start < p.End
}

func (p Position) String() string {
	return fmt.Sprintf("[%d,%d)", p.Start, p.End)
}

// TopicReference is one mention in the text. Before disambiguation it
// carries an Anchor; afterwards TopicID and Confidence are set.
type TopicReference struct {
	Anchor     *Anchor
	TopicID    int
	Confidence float64
	Position   Position
}

// Resolved reports whether the reference has been disambiguated.
func (r TopicReference) Resolved() bool {
	return r.TopicID != 0
}
