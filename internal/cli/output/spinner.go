package output

import (
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Spinner shows progress for a long-running step. On a terminal it is an
// animated bubbletea program; elsewhere it prints the message once.
type Spinner struct {
	r       *Renderer
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

type spinnerModel struct {
	spinner spinner.Model
	message string
	quit    bool
}

type stopMsg struct{}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stopMsg:
		m.quit = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quit {
		return ""
	}
	return m.spinner.View() + " " + m.message
}

// NewSpinner starts a spinner with message.
func (r *Renderer) NewSpinner(message string) *Spinner {
	s := &Spinner{r: r, done: make(chan struct{})}

	if !r.tty || r.EffectiveMode() != ModeText {
		close(s.done)
		r.Muted(message)
		return s
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = r.styles.Accent

	s.program = tea.NewProgram(
		spinnerModel{spinner: sp, message: message},
		tea.WithOutput(r.errOut),
		tea.WithInput(nil),
	)
	go func() {
		defer close(s.done)
		_, _ = s.program.Run()
	}()
	return s
}

// Stop ends the animation without printing anything.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		if s.program != nil {
			s.program.Send(stopMsg{})
		}
		<-s.done
	})
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(msg string) {
	s.Stop()
	s.r.Success(msg)
}

// Fail stops the spinner and prints an error line.
func (s *Spinner) Fail(msg string) {
	s.Stop()
	s.r.Error(msg)
}
