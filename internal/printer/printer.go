// Package printer is the output sink: it renders a node response as
// indented JSON, optionally highlighted for terminals.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"

	"github.com/charmbracelet/lipgloss"
)

var (
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	stringStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	keyPattern    = regexp.MustCompile(`"([^"]*)"\s*:`)
	stringPattern = regexp.MustCompile(`:\s*"((?:[^"\\]|\\.)*)"`)
)

type Printer struct {
	out io.Writer
}

func New(w io.Writer) *Printer {
	return &Printer{out: w}
}

// Println renders v as indented JSON followed by a newline. Color is the
// caller's decision; the printer applies it mechanically.
func (p *Printer) Println(v any, color bool) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	text := string(buf)
	if color {
		text = colorize(text)
	}
	_, err = fmt.Fprintln(p.out, text)
	return err
}

func colorize(text string) string {
	text = stringPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := stringPattern.FindStringSubmatch(m)
		return `: ` + stringStyle.Render(`"`+sub[1]+`"`)
	})
	return keyPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := keyPattern.FindStringSubmatch(m)
		return keyStyle.Render(`"`+sub[1]+`"`) + ":"
	})
}
