// Package printer writes styled status lines for commands.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colonyops/kiln/internal/core/styles"
)

type ctxKey struct{}

// Printer writes human readable status output. Machine readable output goes
// to the command's writer instead.
type Printer struct {
	w io.Writer
}

func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// NewContext returns a context carrying p.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer stored in ctx, or one writing to stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

func (p *Printer) line(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

func (p *Printer) Printf(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

func (p *Printer) Infof(format string, args ...any) {
	p.line(styles.InfoStyle.Render("•") + " " + fmt.Sprintf(format, args...))
}

func (p *Printer) Successf(format string, args ...any) {
	p.line(styles.SuccessStyle.Render("✔") + " " + fmt.Sprintf(format, args...))
}

func (p *Printer) Warnf(format string, args ...any) {
	p.line(styles.WarningStyle.Render("!") + " " + fmt.Sprintf(format, args...))
}

func (p *Printer) Errorf(format string, args ...any) {
	p.line(styles.ErrorStyle.Render("✘") + " " + fmt.Sprintf(format, args...))
}

// Success prints a success line with a muted detail, such as a path or id.
func (p *Printer) Success(title, detail string) {
	p.line(styles.SuccessStyle.Render("✔") + " " + title + " " + styles.MutedStyle.Render(detail))
}

// Section prints a header followed by a divider.
func (p *Printer) Section(title string) {
	p.line("")
	p.line(styles.HeaderStyle.Render(title))
	p.line(styles.DividerStyle.Render("────────────────────────────────"))
}
