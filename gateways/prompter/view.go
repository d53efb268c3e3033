package prompter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var noteTag = regexp.MustCompile(`<note>([^<]*)</note>`)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	bodyStyle   = lipgloss.NewStyle().Padding(1, 2)
	noteStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("229"))
	helperStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a3be8c"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
)

func (m *model) View() string {
	if len(m.content.Segments) == 0 {
		return bodyStyle.Render(helperStyle.Render("No notes loaded. Press q to quit."))
	}
	if m.done {
		return bodyStyle.Render(doneStyle.Render("End of notes. Press r to restart, q to quit."))
	}

	parts := []string{m.statusBar(), m.segmentView()}
	if m.paused {
		parts = append(parts, pausedStyle.Render("  PAUSED"))
	}
	parts = append(parts, helperStyle.Render("  space pause  n/p next/prev  r restart  q quit"))
	return strings.Join(parts, "\n\n")
}

func (m *model) statusBar() string {
	seg := m.current()

	fields := []string{
		fmt.Sprintf("Segment %d/%d", m.segment+1, len(m.content.Segments)),
	}
	if seg.DurationSeconds != nil {
		fields = append(fields, fmt.Sprintf("Remaining %s", formatClock(m.remaining())))
	} else {
		fields = append(fields, "Untimed")
	}
	if m.content.TotalDurationSeconds != nil {
		fields = append(fields, fmt.Sprintf("Total %s", formatClock(time.Duration(*m.content.TotalDurationSeconds)*time.Second)))
	}
	fields = append(fields, fmt.Sprintf("%.1f lines/s", m.scrollSpeed()))

	return statusStyle.Render(strings.Join(fields, "  •  "))
}

func (m *model) segmentView() string {
	text := m.prompter.FormatForDisplay(m.current().Text)
	wrapped := wordwrap.String(text, m.wrapWidth())

	rendered := noteTag.ReplaceAllStringFunc(wrapped, func(match string) string {
		inner := noteTag.FindStringSubmatch(match)[1]
		return noteStyle.Render(" " + inner + " ")
	})

	return headerStyle.Render("▶ ") + bodyStyle.Render(rendered)
}

// scrollSpeed derives the rate the display should advance at, from the
// wrapped height of the current segment.
func (m *model) scrollSpeed() float64 {
	seg := m.current()
	lines := strings.Count(wordwrap.String(seg.Text, m.wrapWidth()), "\n") + 1
	return m.prompter.ScrollSpeed(float64(lines), seg.DurationSeconds, m.speed)
}

func (m *model) wrapWidth() int {
	width := m.width - 6
	if width < 20 {
		width = 20
	}
	return width
}

func formatClock(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
