package prompter

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cuecard/backend/services/teleprompter/entity"
	"github.com/cuecard/backend/services/teleprompter/usecase"
)

// Config wires runtime options into the prompter program.
type Config struct {
	Notes string

	// DefaultSpeed is the scroll rate in lines per second for segments
	// without timing.
	DefaultSpeed float64
}

const tickInterval = 100 * time.Millisecond

type tickMsg time.Time

type model struct {
	prompter usecase.Usecase
	content  entity.Content
	speed    float64

	segment int
	elapsed time.Duration
	paused  bool
	done    bool

	width  int
	height int
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	uc := usecase.New()
	return &model{
		prompter: uc,
		content:  uc.Parse(config.Notes),
		speed:    config.DefaultSpeed,
		width:    80,
		height:   24,
	}
}

func (m *model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		m.advanceClock()
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
	case "n", "right", "down":
		m.next()
	case "p", "left", "up":
		m.prev()
	case "r":
		m.restart()
	}
	return m, nil
}

// advanceClock moves the segment clock forward one tick. Untimed segments
// never auto-advance; the speaker steps through them manually.
func (m *model) advanceClock() {
	if m.paused || m.done || len(m.content.Segments) == 0 {
		return
	}

	duration := m.content.Segments[m.segment].DurationSeconds
	if duration == nil || *duration == 0 {
		return
	}

	m.elapsed += tickInterval
	if m.elapsed >= time.Duration(*duration)*time.Second {
		m.next()
	}
}

func (m *model) next() {
	if m.segment+1 >= len(m.content.Segments) {
		m.done = true
		return
	}
	m.segment++
	m.elapsed = 0
}

func (m *model) prev() {
	m.done = false
	m.elapsed = 0
	if m.segment > 0 {
		m.segment--
	}
}

func (m *model) restart() {
	m.segment = 0
	m.elapsed = 0
	m.paused = false
	m.done = false
}

func (m *model) current() *entity.Segment {
	if len(m.content.Segments) == 0 || m.segment >= len(m.content.Segments) {
		return nil
	}
	return &m.content.Segments[m.segment]
}

// remaining reports the time left in the current segment, zero when untimed.
func (m *model) remaining() time.Duration {
	seg := m.current()
	if seg == nil || seg.DurationSeconds == nil {
		return 0
	}
	left := time.Duration(*seg.DurationSeconds)*time.Second - m.elapsed
	if left < 0 {
		return 0
	}
	return left
}
