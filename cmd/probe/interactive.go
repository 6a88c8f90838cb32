package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/sheet-probe/errors"
	"github.com/wippyai/sheet-probe/probe"
	"github.com/wippyai/sheet-probe/report"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	nullStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateLoading modelState = iota
	stateInputPath
	stateClassifying
	stateShowResult
)

// interactiveModel keeps one provider loaded and classifies every submitted
// path with the same binding until quit.
type interactiveModel struct {
	ctx     context.Context
	err     error
	probe   *probe.Probe
	session *session
	input   textinput.Model
	result  viewport.Model
	path    string
	width   int
	height  int
	state   modelState
}

func newInteractiveModel(ctx context.Context, p *probe.Probe) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "file: "
	ti.Placeholder = "./files/test_data.xlsx"
	ti.SetValue(p.Config().Input)
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		ctx:     ctx,
		probe:   p,
		session: &session{},
		input:   ti,
		result:  viewport.New(80, 20),
		state:   stateLoading,
	}
}

type loadedMsg struct {
	err error
}

type classifiedMsg struct {
	err  error
	text string
	null bool
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadProvider)
}

func (m *interactiveModel) loadProvider() tea.Msg {
	c, err := m.probe.Open(m.ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	if !m.session.attach(m.ctx, c) {
		return loadedMsg{err: errors.NotInitialized(errors.PhaseLoad, "provider")}
	}
	return loadedMsg{}
}

// classify captures what it needs so the command never touches the model
// from the command goroutine.
func (m *interactiveModel) classify(path string) tea.Cmd {
	ctx, s := m.ctx, m.session
	checkInput := m.probe.Config().CheckInput
	return func() tea.Msg {
		var msg classifiedMsg
		if checkInput {
			if msg.err = probe.CheckInput(path); msg.err != nil {
				return msg
			}
		}
		msg.null, msg.err = s.invoke(ctx, path, func(text string) error {
			msg.text = text
			return nil
		})
		return msg
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			// A running call finishes and releases its result before
			// runInteractive closes the session.
			return m, tea.Quit

		case "q":
			if m.state == stateLoading || m.state == stateShowResult {
				return m, tea.Quit
			}

		case "enter":
			switch m.state {
			case stateInputPath:
				m.path = strings.TrimSpace(m.input.Value())
				if m.path == "" {
					return m, nil
				}
				m.state = stateClassifying
				return m, m.classify(m.path)

			case stateShowResult:
				m.state = stateInputPath
				m.err = nil
				m.input.Focus()
				return m, textinput.Blink
			}

		case "esc":
			if m.state == stateShowResult {
				m.state = stateInputPath
				m.err = nil
				m.input.Focus()
				return m, textinput.Blink
			}
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.result.Width = msg.Width
		m.result.Height = max(msg.Height-8, 3)

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.state = stateInputPath

	case classifiedMsg:
		m.err = msg.err
		m.result.SetContent(m.resultContent(msg))
		m.result.GotoTop()
		m.state = stateShowResult
		m.input.Blur()
	}

	var cmd tea.Cmd
	switch m.state {
	case stateInputPath:
		m.input, cmd = m.input.Update(msg)
	case stateShowResult:
		m.result, cmd = m.result.Update(msg)
	}
	return m, cmd
}

func (m *interactiveModel) resultContent(msg classifiedMsg) string {
	switch {
	case msg.err != nil:
		return errorStyle.Render("Error: " + errors.Reason(msg.err))
	case msg.null:
		return nullStyle.Render("Function returned NULL")
	}

	var b strings.Builder
	b.WriteString(resultStyle.Render("Result: " + msg.text))
	if sheets, err := report.Decode(msg.text); err == nil {
		b.WriteString("\n\n")
		b.WriteString(report.Table(sheets))
	}
	return b.String()
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state == stateLoading {
		return errorStyle.Render(fmt.Sprintf("Error: %s\n\nPress q to quit.", errors.Reason(m.err)))
	}

	if m.state == stateLoading {
		return "Loading provider..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Sheet Probe"))
	b.WriteString(" ")
	b.WriteString(m.probe.Config().Library)
	b.WriteString("\n\n")

	switch m.state {
	case stateInputPath:
		b.WriteString("Classify a workbook:\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter classify • ctrl+c quit"))

	case stateClassifying:
		b.WriteString(fmt.Sprintf("Classifying file: %s\n", funcStyle.Render(m.path)))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Classifying file: %s\n\n", funcStyle.Render(m.path)))
		b.WriteString(m.result.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • enter another file • q quit"))
	}

	return b.String()
}

// runInteractive runs the TUI. A provider that fails to load is reported as
// the command's error once the user quits. The provider is closed after the
// program exits, once a running call has released its result.
func runInteractive(ctx context.Context, p *probe.Probe) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return stderrors.New("interactive mode needs a terminal")
	}

	m := newInteractiveModel(ctx, p)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	if cerr := m.session.close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m.state == stateLoading && m.err != nil {
		return m.err
	}
	return nil
}
