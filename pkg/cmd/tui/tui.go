// Package tui renders job progress as a terminal progress bar.
package tui

import (
	"fmt"
	"io"
	"strings"

	bprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mpapenbr/gforce-sculpture/pkg/progress"
)

type (
	viewMsg progress.View

	theme struct {
		title    lipgloss.Style
		subtitle lipgloss.Style
		muted    lipgloss.Style
		ok       lipgloss.Style
		danger   lipgloss.Style
		help     lipgloss.Style
	}

	model struct {
		view       progress.View
		bar        bprogress.Model
		onCancel   func()
		cancelling bool
		theme      theme
	}

	// Program drives the progress view
	Program struct {
		p    *tea.Program
		done chan error
	}
)

func newTheme() theme {
	return theme{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9FD3FF")),
		subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C8D4")),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6E7B88")),
		ok:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#63C17A")),
		danger:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E06B75")),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("#8FA0B3")),
	}
}

// newModel creates the view model. onCancel is called once when the user
// aborts, a nil onCancel quits immediately.
func newModel(onCancel func()) model {
	return model{
		view:     progress.Idle(),
		bar:      bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithoutPercentage()),
		onCancel: onCancel,
		theme:    newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.onCancel == nil {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				go m.onCancel()
			}
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, msg.Width-12)
	case viewMsg:
		m.view = progress.View(msg)
		if m.view.Terminal() {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var sb strings.Builder
	sb.WriteString(m.theme.title.Render(m.view.Title))
	if m.view.Subtitle != "" {
		sb.WriteString("  " + m.theme.subtitle.Render(m.view.Subtitle))
	}
	sb.WriteString("\n")
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		m.bar.ViewAs(m.view.Fraction()),
		m.theme.muted.Render(fmt.Sprintf(" %3d%%", m.view.Percent)),
	))
	sb.WriteString("\n")
	switch {
	case m.view.Phase == progress.PhaseSuccess:
		sb.WriteString(m.theme.ok.Render("done"))
	case m.view.Phase == progress.PhaseError:
		sb.WriteString(m.theme.danger.Render(m.view.Error))
		if m.view.Retryable {
			sb.WriteString(m.theme.help.Render("  (retry possible)"))
		}
	case m.cancelling:
		sb.WriteString(m.theme.help.Render("cancelling..."))
	case m.view.Message != "":
		sb.WriteString(m.theme.muted.Render(m.view.Message))
	default:
		sb.WriteString(m.theme.help.Render("q: cancel"))
	}
	sb.WriteString("\n")
	return sb.String()
}

// Start runs the progress view on out until a terminal view is sent.
func Start(out io.Writer, onCancel func()) *Program {
	ret := &Program{
		p:    tea.NewProgram(newModel(onCancel), tea.WithOutput(out)),
		done: make(chan error, 1),
	}
	go func() {
		_, err := ret.p.Run()
		ret.done <- err
	}()
	return ret
}

func (p *Program) Send(v progress.View) {
	p.p.Send(viewMsg(v))
}

// Wait blocks until the view has terminated
func (p *Program) Wait() error {
	return <-p.done
}

// Stop terminates the view without waiting for a terminal state
func (p *Program) Stop() {
	p.p.Quit()
}
