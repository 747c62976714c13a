// Package inspect renders events as styled terminal trees: one header
// per event, the metadata line, then each collection with its entities
// and their attributes. It exists for eyeballing a handful of events
// while developing a schema, not for machine consumption; use the
// export package for that.
package inspect

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dtflow/dtflow/pkg/dtflow"
)

// Colors
var (
	yellow = lipgloss.Color("#FFCC00")
	green  = lipgloss.Color("#00CC66")
	purple = lipgloss.Color("#AA77FF")
	cyan   = lipgloss.Color("#00CCCC")
	muted  = lipgloss.Color("#666666")
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	typeStyle   = lipgloss.NewStyle().Bold(true).Foreground(green)
	countStyle  = lipgloss.NewStyle().Foreground(purple)
	entityStyle = lipgloss.NewStyle().Foreground(cyan)
	attrStyle   = lipgloss.NewStyle()
	refStyle    = lipgloss.NewStyle().Foreground(muted)
)

// Printer renders events. Configure it once and reuse it; a Printer is
// safe for concurrent use as long as the writer is.
type Printer struct {
	out         io.Writer
	include     map[string]bool
	exclude     map[string]bool
	maxEntities int
}

// Option configures a Printer.
type Option func(*Printer)

// WithWriter directs output somewhere other than stdout.
func WithWriter(w io.Writer) Option {
	return func(p *Printer) { p.out = w }
}

// Include restricts entity attribute output to the named attributes.
func Include(names ...string) Option {
	return func(p *Printer) {
		p.include = make(map[string]bool, len(names))
		for _, n := range names {
			p.include[n] = true
		}
	}
}

// Exclude drops the named attributes from entity output.
func Exclude(names ...string) Option {
	return func(p *Printer) {
		p.exclude = make(map[string]bool, len(names))
		for _, n := range names {
			p.exclude[n] = true
		}
	}
}

// WithMaxEntities caps how many entities print per collection; the rest
// collapse into one "… and N more" line. Zero or negative prints all.
func WithMaxEntities(n int) Option {
	return func(p *Printer) { p.maxEntities = n }
}

// NewPrinter returns a printer writing to stdout unless redirected.
func NewPrinter(opts ...Option) *Printer {
	p := &Printer{out: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print renders one event to the printer's writer. A nil event renders
// a rejection marker, so cursors can be drained straight into Print.
func (p *Printer) Print(ev *dtflow.Event) error {
	_, err := io.WriteString(p.out, p.Render(ev))
	return err
}

// Render returns one event's styled tree.
func (p *Printer) Render(ev *dtflow.Event) string {
	var b strings.Builder
	if ev == nil {
		b.WriteString(refStyle.Render("(event rejected by pipeline)"))
		b.WriteByte('\n')
		return b.String()
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("────── Event %d ──────", ev.Index())))
	b.WriteByte('\n')

	if names := ev.MetaNames(); len(names) > 0 {
		pairs := make([]string, 0, len(names))
		for _, name := range names {
			v, _ := ev.Meta(name)
			pairs = append(pairs, fmt.Sprintf("%s: %v", name, v))
		}
		b.WriteString("  " + attrStyle.Render(strings.Join(pairs, "  ")))
		b.WriteByte('\n')
	}

	for _, typ := range ev.Types() {
		ents := ev.Collection(typ)
		b.WriteString("  " + typeStyle.Render(typ) + countStyle.Render(fmt.Sprintf(" (%d)", len(ents))))
		b.WriteByte('\n')

		limit := len(ents)
		if p.maxEntities > 0 && p.maxEntities < limit {
			limit = p.maxEntities
		}
		for _, ent := range ents[:limit] {
			p.renderEntity(&b, ent)
		}
		if rest := len(ents) - limit; rest > 0 {
			b.WriteString("    " + refStyle.Render(fmt.Sprintf("… and %d more", rest)))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (p *Printer) renderEntity(b *strings.Builder, ent *dtflow.Entity) {
	b.WriteString("    " + entityStyle.Render(fmt.Sprintf("%s %d", ent.Type(), ent.Index())))

	var pairs []string
	for _, name := range ent.AttrNames() {
		if !p.wants(name) {
			continue
		}
		v, _ := ent.Attr(name)
		pairs = append(pairs, fmt.Sprintf("%s: %v", name, v))
	}
	if len(pairs) > 0 {
		b.WriteString("  " + attrStyle.Render(strings.Join(pairs, "  ")))
	}
	b.WriteByte('\n')

	for _, name := range ent.RefNames() {
		if !p.wants(name) {
			continue
		}
		b.WriteString("      " + refStyle.Render(fmt.Sprintf("%s: %s", name, formatRefs(ent.Refs(name)))))
		b.WriteByte('\n')
	}
}

// wants applies the include/exclude filters to one attribute name.
func (p *Printer) wants(name string) bool {
	if p.include != nil && !p.include[name] {
		return false
	}
	if p.exclude != nil && p.exclude[name] {
		return false
	}
	return true
}

// formatRefs renders a reference list compactly, grouping consecutive
// references of one type: "segments[0 3 7] tps[1]".
func formatRefs(refs []dtflow.Ref) string {
	if len(refs) == 0 {
		return "none"
	}
	var b strings.Builder
	var typ string
	var idx []string
	flush := func() {
		if typ == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s[%s]", typ, strings.Join(idx, " "))
	}
	for _, r := range refs {
		if r.Type != typ {
			flush()
			typ, idx = r.Type, idx[:0]
		}
		idx = append(idx, fmt.Sprintf("%d", r.Index))
	}
	flush()
	return b.String()
}
