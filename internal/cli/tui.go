package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	dangerStyle       = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
)

// maxPreviewNames caps the actor names listed in the confirmation prompt.
const maxPreviewNames = 8

// confirmKeyMap binds the confirmation prompt's keys.
type confirmKeyMap struct {
	Yes    key.Binding
	No     key.Binding
	Left   key.Binding
	Right  key.Binding
	Submit key.Binding
}

var confirmKeys = confirmKeyMap{
	Yes:    key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
	No:     key.NewBinding(key.WithKeys("n", "N", "q", "esc", "ctrl+c"), key.WithHelp("n", "no")),
	Left:   key.NewBinding(key.WithKeys("left", "h", "up", "k"), key.WithHelp("←/→", "choose")),
	Right:  key.NewBinding(key.WithKeys("right", "l", "down", "j", "tab")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("⏎", "confirm")),
}

func (k confirmKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Yes, k.No, k.Left, k.Submit}
}

func (k confirmKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// =============================================================================
// ConfirmModel - Destructive action confirmation
// =============================================================================

// ConfirmModel is the bubbletea model asking whether to delete the
// original actors after a run.
type ConfirmModel struct {
	Title     string
	Names     []string
	Cursor    int // 0 = yes, 1 = no
	Confirmed bool
	Done      bool
}

// NewConfirmModel creates a confirmation prompt listing names. The cursor
// starts on "no".
func NewConfirmModel(title string, names []string) ConfirmModel {
	return ConfirmModel{Title: title, Names: names, Cursor: 1}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, confirmKeys.Yes):
		m.Confirmed, m.Done = true, true
		return m, tea.Quit
	case key.Matches(keyMsg, confirmKeys.No):
		m.Confirmed, m.Done = false, true
		return m, tea.Quit
	case key.Matches(keyMsg, confirmKeys.Left):
		m.Cursor = 0
	case key.Matches(keyMsg, confirmKeys.Right):
		m.Cursor = 1
	case key.Matches(keyMsg, confirmKeys.Submit):
		m.Confirmed, m.Done = m.Cursor == 0, true
		return m, tea.Quit
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	if m.Done {
		return ""
	}
	var b strings.Builder

	b.WriteString(dangerStyle.Render(m.Title))
	b.WriteString("\n\n")
	for i, name := range m.Names {
		if i == maxPreviewNames {
			b.WriteString(listDimStyle.Render(fmt.Sprintf("  … and %d more", len(m.Names)-maxPreviewNames)))
			b.WriteString("\n")
			break
		}
		b.WriteString("  " + name + "\n")
	}
	b.WriteString("\n")

	yes, no := "  Yes  ", "  No  "
	if m.Cursor == 0 {
		yes = listSelectedStyle.Render("[ Yes ]")
		no = listDimStyle.Render(no)
	} else {
		yes = listDimStyle.Render(yes)
		no = listSelectedStyle.Render("[ No ]")
	}
	b.WriteString(yes + "  " + no + "\n\n")
	b.WriteString(help.New().View(confirmKeys))
	b.WriteString("\n")
	return b.String()
}

// confirm runs a ConfirmModel on the terminal and reports the answer.
func confirm(title string, names []string) (bool, error) {
	final, err := tea.NewProgram(NewConfirmModel(title, names)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	m, ok := final.(ConfirmModel)
	return ok && m.Confirmed, nil
}
