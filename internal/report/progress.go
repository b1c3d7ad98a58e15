package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
)

// Progress draws a single-line crawl progress bar, redrawn in place with a
// carriage return. It is used when verbose output is off.
type Progress struct {
	mu       sync.Mutex
	out      io.Writer
	bar      progress.Model
	drawn    bool
	finished bool
}

// NewProgress creates a progress bar writing to out.
func NewProgress(out io.Writer) *Progress {
	return &Progress{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

// Update redraws the bar for done of total pages. label is shown after
// the counter, shortened to fit.
func (p *Progress) Update(done, total int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return
	}
	pct := 0.0
	if total > 0 {
		pct = min(float64(done)/float64(total), 1)
	}
	_, _ = fmt.Fprintf(p.out, "\r%s %d/%d %-40s", p.bar.ViewAs(pct), done, total, truncateString(label, 40))
	p.drawn = true
}

// Finish ends the bar line. Later updates are ignored.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.drawn && !p.finished {
		_, _ = fmt.Fprintln(p.out)
	}
	p.finished = true
}
