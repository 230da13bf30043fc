package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/quickjs-runtime/engine"
	"github.com/wippyai/quickjs-runtime/quickjs"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type replEntry struct {
	source string
	output string
	isErr  bool
}

type replModel struct {
	err        error
	eng        *engine.Engine
	jsctx      *quickjs.Context
	enginePath string
	limitMB    int64
	input      textinput.Model
	entries    []replEntry
	history    []string
	histIdx    int
	busy       bool
}

type engineReadyMsg struct {
	err   error
	eng   *engine.Engine
	jsctx *quickjs.Context
}

type evalResultMsg struct {
	err    error
	source string
	output string
}

func newReplModel(enginePath string, limitMB int64) *replModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("qjs> ")
	ti.Placeholder = "1 + 1"
	ti.Width = 72
	ti.Focus()
	return &replModel{
		enginePath: enginePath,
		limitMB:    limitMB,
		input:      ti,
	}
}

func (m *replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadEngine)
}

func (m *replModel) loadEngine() tea.Msg {
	ctx := context.Background()

	wasm, err := os.ReadFile(m.enginePath)
	if err != nil {
		return engineReadyMsg{err: err}
	}
	eng, err := engine.New(ctx, wasm)
	if err != nil {
		return engineReadyMsg{err: err}
	}
	jsctx, err := quickjs.NewContext(ctx, eng)
	if err != nil {
		eng.Close(ctx)
		return engineReadyMsg{err: err}
	}
	if m.limitMB > 0 {
		if err := jsctx.SetMemoryLimit(ctx, m.limitMB<<20); err != nil {
			jsctx.Close(ctx)
			eng.Close(ctx)
			return engineReadyMsg{err: err}
		}
	}
	return engineReadyMsg{eng: eng, jsctx: jsctx}
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			ctx := context.Background()
			if m.jsctx != nil {
				m.jsctx.Close(ctx)
			}
			if m.eng != nil {
				m.eng.Close(ctx)
			}
			return m, tea.Quit

		case "enter":
			if m.busy || m.jsctx == nil {
				return m, nil
			}
			source := strings.TrimSpace(m.input.Value())
			if source == "" {
				return m, nil
			}
			m.history = append(m.history, source)
			m.histIdx = len(m.history)
			m.input.SetValue("")
			m.busy = true
			return m, m.evalCmd(source)

		case "up":
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.histIdx < len(m.history) {
				m.histIdx++
				if m.histIdx == len(m.history) {
					m.input.SetValue("")
				} else {
					m.input.SetValue(m.history[m.histIdx])
					m.input.CursorEnd()
				}
			}
			return m, nil
		}

	case engineReadyMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.eng = msg.eng
		m.jsctx = msg.jsctx

	case evalResultMsg:
		m.busy = false
		entry := replEntry{source: msg.source}
		if msg.err != nil {
			entry.output = msg.err.Error()
			entry.isErr = true
		} else {
			entry.output = msg.output
		}
		m.entries = append(m.entries, entry)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// evalCmd runs one evaluation off the update loop. The busy flag
// keeps the single-goroutine contract: no second eval starts until
// the result message lands.
func (m *replModel) evalCmd(source string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		v, err := m.jsctx.Eval(ctx, source)
		if err != nil {
			return evalResultMsg{source: source, err: err}
		}
		out, err := formatValue(ctx, v)
		if err != nil {
			return evalResultMsg{source: source, err: err}
		}
		return evalResultMsg{source: source, output: out}
	}
}

func (m *replModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("QuickJS"))
	b.WriteString(" ")
	b.WriteString(m.enginePath)
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("ctrl+c quit"))
		return b.String()
	}

	for _, e := range m.entries {
		b.WriteString(promptStyle.Render("qjs> "))
		b.WriteString(e.source)
		b.WriteString("\n")
		if e.output != "" {
			if e.isErr {
				b.WriteString(errorStyle.Render(e.output))
			} else {
				b.WriteString(resultStyle.Render(e.output))
			}
			b.WriteString("\n")
		}
	}

	switch {
	case m.jsctx == nil:
		b.WriteString("Loading engine...\n")
	case m.busy:
		b.WriteString(promptStyle.Render("qjs> "))
		b.WriteString("...\n")
	default:
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ history • enter eval • ctrl+c quit"))
	return b.String()
}

func runREPL(enginePath string, limitMB int64) error {
	p := tea.NewProgram(newReplModel(enginePath, limitMB))
	_, err := p.Run()
	return err
}
