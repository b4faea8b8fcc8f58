// Package progress reports batch progress on the terminal.
package progress

import (
	"github.com/cheggaaa/pb"
)

// Bar counts processed items. A nil *Bar is a silent no-op.
type Bar struct {
	bar *pb.ProgressBar
}

// Start begins a bar over total items. When quiet is set, or there is
// nothing to count, it returns nil.
func Start(total int, prefix string, quiet bool) *Bar {
	if quiet || total <= 0 {
		return nil
	}
	bar := pb.New(total).Prefix(prefix + " ")
	bar.ShowSpeed = true
	return &Bar{bar: bar.Start()}
}

// Increment records one processed item.
func (b *Bar) Increment() {
	if b == nil {
		return
	}
	b.bar.Increment()
}

// Finish stops the bar.
func (b *Bar) Finish() {
	if b == nil {
		return
	}
	b.bar.Finish()
}
