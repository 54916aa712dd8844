package sink

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/KaramelBytes/dqaudit-cli/internal/utils"
)

// Markdown collects sections and tables as GitHub-flavored markdown.
type Markdown struct {
	b strings.Builder
}

// NewMarkdown returns a markdown sink, with a top heading when title is set.
func NewMarkdown(title string) *Markdown {
	m := &Markdown{}
	if title != "" {
		m.AddHeading(1, title)
	}
	return m
}

func (m *Markdown) AddHeading(level int, text string) {
	if level < 1 {
		level = 1
	}
	m.b.WriteString(strings.Repeat("#", level))
	m.b.WriteString(" ")
	m.b.WriteString(text)
	m.b.WriteString("\n\n")
}

func (m *Markdown) AddParagraph(text string) {
	m.b.WriteString(text)
	m.b.WriteString("\n\n")
}

func (m *Markdown) WriteTable(sheet string, t audit.Table) error {
	m.AddHeading(2, sheet)
	if t.Name != "" && (len(t.Header) == 0 || t.Name != t.Header[0]) {
		fmt.Fprintf(&m.b, "**%s**\n\n", t.Name)
	}
	if len(t.Header) == 0 {
		return nil
	}
	m.b.WriteString("| ")
	for i, h := range t.Header {
		if i > 0 {
			m.b.WriteString(" | ")
		}
		m.b.WriteString(cellText(h))
	}
	m.b.WriteString(" |\n|")
	for range t.Header {
		m.b.WriteString("---|")
	}
	m.b.WriteString("\n")
	if len(t.Rows) == 0 {
		m.b.WriteString("| (none) |\n\n")
		return nil
	}
	for _, row := range t.Rows {
		m.b.WriteString("| ")
		for i, v := range row {
			if i > 0 {
				m.b.WriteString(" | ")
			}
			m.b.WriteString(cellText(audit.Category(v)))
		}
		m.b.WriteString(" |\n")
	}
	m.b.WriteString("\n")
	return nil
}

// String returns the rendered markdown.
func (m *Markdown) String() string { return m.b.String() }

// Save writes the markdown atomically.
func (m *Markdown) Save(path string) error {
	return utils.SafeWriteFile(path, []byte(m.String()))
}

func cellText(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
