package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/studiowebux/proxybench/internal/stresstest"
)

const (
	pickerWidth  = 80
	pickerHeight = 20
)

var (
	pickerTitleStyle = lipgloss.NewStyle().MarginLeft(2).Bold(true)
	pickerHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1).MarginLeft(2)
)

// runItem adapts a stored run to the list component
type runItem struct {
	run *stresstest.Run
}

func (i runItem) FilterValue() string {
	return fmt.Sprintf("%d %s %s %s", i.run.ID, i.run.ConfigPath, i.run.Status, strings.Join(i.run.Targets, " "))
}

func (i runItem) Title() string {
	return fmt.Sprintf("#%d  %s  %s", i.run.ID, i.run.StartedAt.Local().Format(time.DateTime), i.run.Status)
}

func (i runItem) Description() string {
	desc := fmt.Sprintf("%d targets x %d msgs", len(i.run.Targets), i.run.MessagesPerConnection)
	switch {
	case i.run.Status == stresstest.StatusFailed:
		desc += "  " + i.run.ErrorMessage
	case i.run.Summary.HasData:
		desc += fmt.Sprintf("  %.2f rps  p50 %dms  p99 %dms", i.run.RPS, i.run.Summary.P50Ms, i.run.Summary.P99Ms)
	}
	return desc
}

type runPicker struct {
	list   list.Model
	chosen int64
	done   bool
}

func newRunPicker(runs []*stresstest.Run) runPicker {
	items := make([]list.Item, len(runs))
	for i, run := range runs {
		items[i] = runItem{run: run}
	}

	l := list.New(items, list.NewDefaultDelegate(), pickerWidth, pickerHeight)
	l.Title = "Select a run"
	l.Styles.Title = pickerTitleStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return runPicker{list: l}
}

func (m runPicker) Init() tea.Cmd {
	return nil
}

func (m runPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, min(msg.Height-2, pickerHeight))
		return m, nil

	case tea.KeyMsg:
		// While filtering, keys belong to the filter input
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.done = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(runItem); ok {
				m.chosen = item.run.ID
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m runPicker) View() string {
	if m.done {
		return ""
	}
	return m.list.View() + "\n" + pickerHelpStyle.Render("↑/↓: navigate • /: filter • enter: show report • q: cancel")
}

// promptForRun lets the user pick a stored run and returns its ID
func promptForRun(runs []*stresstest.Run) (int64, error) {
	if len(runs) == 0 {
		return 0, fmt.Errorf("no runs recorded")
	}

	final, err := tea.NewProgram(newRunPicker(runs)).Run()
	if err != nil {
		return 0, fmt.Errorf("error running selector: %w", err)
	}

	picked := final.(runPicker)
	if picked.chosen == 0 {
		return 0, fmt.Errorf("selection cancelled")
	}
	return picked.chosen, nil
}
