package cli

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/haivivi/scullring/pkg/scull"
)

// Theme defines the color scheme for the board.
type Theme struct {
	Primary lipgloss.Color
	Warn    lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Warn:    lipgloss.Color("#ffb000"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Full   lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Full:   lipgloss.NewStyle().Foreground(t.Warn),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Section is a labeled block of lines inside a Frame. At most Height lines
// are shown, keeping the last ones; zero shows every line.
type Section struct {
	Label  string
	Lines  []string
	Height int
}

// Frame renders a bordered box with a title, sections and a help line.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render renders the frame at the given width.
func (f Frame) Render(width int) string {
	width = max(width, 20)
	bc := f.Styles.Border
	inner := width - 4

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	padding := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, bc.Render("│")+" "+title+" "+status+
		strings.Repeat(" ", padding)+" "+bc.Render("│"))

	for _, sec := range f.Sections {
		lines = append(lines, f.renderSection(sec, width, inner)...)
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	if f.Help != "" {
		lines = append(lines, f.Styles.Help.Render(f.Help))
	}
	return strings.Join(lines, "\n")
}

func (f Frame) renderSection(sec Section, width, inner int) []string {
	bc := f.Styles.Border
	label := f.Styles.Label.Render(sec.Label)
	padding := max(0, width-3-lipgloss.Width(label))
	lines := []string{bc.Render("├") + bc.Render("─") + label +
		bc.Render(strings.Repeat("─", padding)) + bc.Render("┤")}

	content := sec.Lines
	if sec.Height > 0 && len(content) > sec.Height {
		content = content[len(content)-sec.Height:]
	}
	n := len(content)
	if sec.Height > 0 {
		n = sec.Height
	}
	for i := range n {
		text := ""
		if i < len(content) {
			text = content[i]
		}
		if inner > 1 && lipgloss.Width(text) > inner {
			text = truncateString(text, inner-1) + "…"
		}
		lines = append(lines, bc.Render("│")+" "+text+
			strings.Repeat(" ", max(0, inner-lipgloss.Width(text)))+" "+bc.Render("│"))
	}
	return lines
}

// truncateString truncates s to the given display width.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	w := 0
	for i, r := range runes {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return string(runes[:i])
		}
		w += rw
	}
	return s
}

// Board is a live view of channel snapshots plus the most recent event
// lines. It is safe for concurrent use.
type Board struct {
	Styles   Styles
	Title    string
	MaxLines int

	mu       sync.Mutex
	channels []scull.ChannelStatus
	updated  time.Time
	events   []string
}

// NewBoard returns a board keeping the last maxLines events.
func NewBoard(title string, maxLines int) *Board {
	return &Board{Styles: NewStyles(DefaultTheme), Title: title, MaxLines: maxLines}
}

// Update replaces the channel snapshot.
func (b *Board) Update(at time.Time, channels []scull.ChannelStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = channels
	b.updated = at
}

// Event appends an event line, dropping the oldest past MaxLines.
func (b *Board) Event(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, line)
	if b.MaxLines > 0 && len(b.events) > b.MaxLines {
		b.events = append(b.events[:0], b.events[len(b.events)-b.MaxLines:]...)
	}
}

// Write implements io.Writer so a Board can capture log output. Each line
// becomes an event.
func (b *Board) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		b.Event(line)
	}
	return len(p), nil
}

// Render renders the board at the given width.
func (b *Board) Render(width int, now time.Time) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := "waiting"
	if !b.updated.IsZero() {
		status = FormatAge(b.updated, now)
	}
	chLines := make([]string, 0, len(b.channels))
	for _, cs := range b.channels {
		line := StatusLine(cs)
		if cs.Status.Free() == 0 {
			line = b.Styles.Full.Render(line)
		}
		chLines = append(chLines, line)
	}
	return Frame{
		Styles: b.Styles,
		Title:  b.Title,
		Status: status,
		Sections: []Section{
			{Label: "channels", Lines: chLines},
			{Label: "events", Lines: append([]string(nil), b.events...), Height: b.MaxLines},
		},
		Help: "ctrl+c to stop",
	}.Render(width)
}
