// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] type renders the navigator state (current step, recognition and
// playback status, recent triggers) above an input prompt. Application
// output is printed above the rendered area via Program.Println / Printf,
// so concurrent writes never garble the display.
package display

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/engine"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	listeningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a")).
			Italic(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// BannerStyle is the muted slate used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	primaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	userInputEchoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#a1a1aa"))
)

// TriggerLines is how many trigger log entries the panel shows.
const TriggerLines = 5

// ── UI ───────────────────────────────────────────────────────────

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Other goroutines may call
// [UI.Render], [UI.Println] and read from [UI.InputChan] at any time after
// [UI.WaitReady] returns.
type UI struct {
	program *tea.Program
	inputCh chan string
	readyCh chan struct{}
	quitCh  chan struct{}
	done    atomic.Bool
	pending atomic.Pointer[engine.State]
}

// NewUI creates the display. Call Run to start.
func NewUI() *UI {
	return &UI{
		inputCh: make(chan string, 16),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// Render shows s. Safe to call from navigator subscribers on any
// goroutine; before Run starts the latest state is kept and shown first.
func (u *UI) Render(s engine.State) {
	if u.program != nil && !u.done.Load() {
		u.program.Send(stateMsg(s))
		return
	}
	u.pending.Store(&s)
}

// Println prints a line above the panel. Falls back to stdout when the
// program is not running.
func (u *UI) Println(a ...interface{}) {
	if u.program != nil && !u.done.Load() {
		u.program.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// Printf prints formatted text above the panel.
func (u *UI) Printf(format string, a ...interface{}) {
	if u.program != nil && !u.done.Load() {
		u.program.Printf(format, a...)
	} else {
		fmt.Printf(format, a...)
	}
}

// PrintHint prints a secondary/dimmed line.
func (u *UI) PrintHint(text string) {
	u.Println(secondaryStyle.Render("  " + text))
}

// PrintUrgent prints an error line.
func (u *UI) PrintUrgent(text string) {
	u.Println(errorStyle.Render("  " + text))
}

// PrintUserInput echoes a typed command into the scrollback.
func (u *UI) PrintUserInput(text string) {
	u.Println(promptStyle.Render("otto") + secondaryStyle.Render("> ") + userInputEchoStyle.Render(text))
}

// InputChan returns completed user-input lines.
func (u *UI) InputChan() <-chan string { return u.inputCh }

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// QuitChan is closed when Run returns.
func (u *UI) QuitChan() <-chan struct{} { return u.quitCh }

// Run starts the Bubble Tea event loop. Blocks until quit.
func (u *UI) Run() error {
	ti := textinput.New()
	// A plain-text prompt keeps the textinput width math correct.
	ti.Prompt = "otto> "
	ti.PromptStyle = promptStyle
	ti.TextStyle = userInputEchoStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	ti.Placeholder = "n / p / r, start, stop, list, <number>"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60

	m := model{
		input:   ti,
		inputCh: u.inputCh,
		readyCh: u.readyCh,
		echoFn:  u.PrintUserInput,
	}
	if s := u.pending.Load(); s != nil {
		m.state = *s
	}

	u.program = tea.NewProgram(m)
	_, err := u.program.Run()
	u.done.Store(true)
	close(u.quitCh)
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type stateMsg engine.State

type model struct {
	input   textinput.Model
	inputCh chan<- string
	readyCh chan struct{}
	echoFn  func(string)
	state   engine.State
	width   int
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		signalReady(m.readyCh),
		tea.SetWindowTitle("OttoNav"),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			v := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(v) != "" {
				m.inputCh <- v
				// Echo from a Cmd so Println does not block inside Update.
				echoFn := m.echoFn
				return m, func() tea.Msg {
					echoFn(v)
					return nil
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		const promptLen = 6
		if msg.Width > promptLen {
			m.input.Width = msg.Width - promptLen
		}
		return m, nil

	case stateMsg:
		m.state = engine.State(msg)
		return m, tea.SetWindowTitle(titleStr(m.state))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(renderPanel(m.state, m.width))
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	return b.String()
}

// ── Rendering ────────────────────────────────────────────────────

func renderPanel(s engine.State, width int) string {
	var b strings.Builder

	if s.Showing {
		b.WriteString(stepStyle.Render(fmt.Sprintf("  Step %d/%d", s.Index+1, s.Total)))
		if s.Step.Title != "" {
			b.WriteString(stepStyle.Render("  " + s.Step.Title))
		}
		if s.Complete {
			b.WriteString(secondaryStyle.Render("  (last step)"))
		}
		b.WriteByte('\n')
		b.WriteString(primaryStyle.Render("  " + s.Step.NarrationText))
		b.WriteByte('\n')
	} else {
		b.WriteString(idleStyle.Render("  No recipe selected. Type 'list' to see recipes."))
		b.WriteByte('\n')
	}

	if lines := triggerLines(s.Recognition, TriggerLines); len(lines) > 0 {
		b.WriteByte('\n')
		for _, l := range lines {
			b.WriteString(secondaryStyle.Render("  " + l))
			b.WriteByte('\n')
		}
	}

	if s.LastError != nil {
		b.WriteString(errorStyle.Render("  ! " + s.LastError.Error()))
		b.WriteByte('\n')
	}

	b.WriteString(renderBar(s, width))
	b.WriteByte('\n')
	return b.String()
}

func renderBar(s engine.State, width int) string {
	rec := s.Recognition
	recPart := labelStyle.Render("mic: ") + recognitionStyle(rec.Status).Render(rec.Status.String())
	if rec.StatusMessage != "" {
		recPart += secondaryStyle.Render(" (" + rec.StatusMessage + ")")
	}
	if s.MicSuspended {
		recPart += busyStyle.Render(" muted")
	}
	if rec.InterimTranscript != "" {
		recPart += secondaryStyle.Render(" … " + rec.InterimTranscript)
	}

	play := labelStyle.Render("audio: ") + playbackStyle(s.Playback.Status).Render(s.Playback.Status.String())
	count := labelStyle.Render(fmt.Sprintf("triggers: %d", rec.TriggerCount))

	content := " " + strings.Join([]string{recPart, play, count}, sepStyle.Render("  │  ")) + " "

	if width <= 0 {
		width = 80
	}
	return barBg.Width(width).Render(content)
}

// triggerLines returns the newest n entries, oldest first.
func triggerLines(rec domain.RecognitionState, n int) []string {
	log := rec.TriggerLog
	if len(log) > n {
		log = log[len(log)-n:]
	}
	out := make([]string, 0, len(log))
	for _, e := range log {
		out = append(out, e.String())
	}
	return out
}

func recognitionStyle(st domain.RecognitionStatus) lipgloss.Style {
	switch st {
	case domain.RecognitionListening, domain.RecognitionSuccess:
		return listeningStyle
	case domain.RecognitionProcessing:
		return busyStyle
	case domain.RecognitionFailed:
		return errorStyle
	default:
		return idleStyle
	}
}

func playbackStyle(st domain.PlaybackStatus) lipgloss.Style {
	switch st {
	case domain.PlaybackPlaying:
		return busyStyle
	case domain.PlaybackPaused:
		return labelStyle
	default:
		return idleStyle
	}
}

func titleStr(s engine.State) string {
	if !s.Showing {
		return "OttoNav"
	}
	return fmt.Sprintf("OttoNav: step %d/%d", s.Index+1, s.Total)
}
