package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6EF4A1"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4C66E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F45E6E"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6EC4F4"))
	bannerStyle  = lipgloss.NewStyle().Bold(true)
)

// printer serializes styled status lines onto one writer. Worker
// goroutines log through it concurrently, so every method takes the lock.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer { return &printer{w: w} }

func (p *printer) line(style lipgloss.Style, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, style.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Plainf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) Successf(format string, args ...any) { p.line(successStyle, format, args...) }
func (p *printer) Warnf(format string, args ...any)    { p.line(warnStyle, format, args...) }
func (p *printer) Errorf(format string, args ...any)   { p.line(errorStyle, format, args...) }
func (p *printer) Infof(format string, args ...any)    { p.line(infoStyle, format, args...) }

func (p *printer) Banner(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rule := "======================================================================"
	fmt.Fprintln(p.w, rule)
	fmt.Fprintln(p.w, bannerStyle.Render(text))
	fmt.Fprintln(p.w, rule)
}
