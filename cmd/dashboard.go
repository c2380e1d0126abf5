package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/mabhi256/objwire/internal/wire/model"
	"github.com/mabhi256/objwire/internal/wire/reader"
	"github.com/mabhi256/objwire/internal/wire/session"
	"github.com/mabhi256/objwire/utils"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:               "dashboard <file>",
	Short:             "Browse a stream's type stamps and object counts interactively",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension([]string{".owire"}, false),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(args[0])
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h, _, cr, err := session.OpenRawReader(f)
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	rep, err := reader.Dump(cr, preservationFromHeader(h))
	if err != nil {
		return fmt.Errorf("walking object graph: %w", err)
	}

	m := newDashboardModel(path, rep)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

type dashKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Tab  key.Binding
	Quit key.Binding
}

func (k dashKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Tab, k.Quit}
}

func (k dashKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Tab, k.Quit}}
}

var dashKeys = dashKeyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Tab:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// dashPane is which half of the split view has keyboard focus. Cycled
// with tab via utils.GetNextEnum, the same enum-cycling helper the
// teacher used for its tab bar.
type dashPane int

const (
	paneStamps dashPane = iota
	paneChart
)

// dashboardModel is the interactive counterpart to `inspect`: a
// stamp table on the left, a per-type object-count bar chart on the
// right, both fed from a single one-shot reader.Dump of the file.
type dashboardModel struct {
	path   string
	report *reader.Report

	width  int
	height int
	focus  dashPane

	stamps table.Model
	chart  barchart.Model
}

func newDashboardModel(path string, rep *reader.Report) *dashboardModel {
	cols := []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Type", Width: 30},
		{Title: "Fields", Width: 8},
		{Title: "Instances", Width: 10},
	}
	rows := make([]table.Row, len(rep.Stamps))
	for i, s := range rep.Stamps {
		rows[i] = table.Row{
			fmt.Sprintf("%d", s.TypeID),
			s.Name,
			fmt.Sprintf("%d", len(s.Fields)),
			fmt.Sprintf("%d", rep.ObjectCounts[s.TypeID]),
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(len(rows)+1),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Bold(true).Foreground(utils.InfoColor)
	ts.Selected = ts.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(utils.InfoColor)
	t.SetStyles(ts)

	bc := barchart.New(40, len(rep.Stamps)*2+2)
	bc.PushAll(barData(rep))
	bc.Draw()

	return &dashboardModel{path: path, report: rep, stamps: t, chart: bc}
}

func barData(rep *reader.Report) []barchart.BarData {
	ids := make([]model.TypeID, 0, len(rep.Stamps))
	for _, s := range rep.Stamps {
		ids = append(ids, s.TypeID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	byID := make(map[model.TypeID]string, len(rep.Stamps))
	for _, s := range rep.Stamps {
		byID[s.TypeID] = s.Name
	}

	data := make([]barchart.BarData, len(ids))
	for i, id := range ids {
		data[i] = barchart.BarData{
			Label: byID[id],
			Values: []barchart.BarValue{
				{Name: byID[id], Value: float64(rep.ObjectCounts[id]), Style: lipgloss.NewStyle().Foreground(utils.InfoColor)},
			},
		}
	}
	return data
}

func (m *dashboardModel) Init() tea.Cmd { return nil }

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, dashKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, dashKeys.Tab):
			m.focus = utils.GetNextEnum(m.focus, paneChart)
			return m, nil
		}
	}
	if m.focus == paneStamps {
		var cmd tea.Cmd
		m.stamps, cmd = m.stamps.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	header := utils.TitleStyle.Render(fmt.Sprintf("objwire dashboard — %s", m.path))
	summary := utils.FormatKeyValue("types", fmt.Sprintf("%d", len(m.report.Stamps)), 16) + "  " +
		utils.FormatKeyValue("objects", fmt.Sprintf("%d", m.report.TotalObjects), 16)

	leftBox, rightBox := utils.BoxStyle, utils.BoxStyle
	if m.focus == paneStamps {
		leftBox = leftBox.BorderForeground(utils.InfoColor)
	} else {
		rightBox = rightBox.BorderForeground(utils.InfoColor)
	}

	left := leftBox.Render(m.stamps.View())
	right := rightBox.Render(m.chart.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	footer := utils.MutedStyle.Render("tab switch pane   ↑/k ↓/j move   q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, summary, body, footer)
}
