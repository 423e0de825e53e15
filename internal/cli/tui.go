package cli

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/temotskipa/autoredistrict/pkg/plan"
)

// List styles
var (
	listNormalStyle = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

// maxUnitLines bounds the unit GEOIDs listed in the detail pane.
const maxUnitLines = 6

// browseDistricts runs the interactive district browser over a plan.
func browseDistricts(p *plan.Plan) error {
	_, err := tea.NewProgram(newDistrictModel(p)).Run()
	return err
}

// DistrictModel is the bubbletea model for browsing a plan's districts.
type DistrictModel struct {
	Plan   *plan.Plan
	Cursor int
	Height int
	Offset int
}

// newDistrictModel creates a district browser over p.
func newDistrictModel(p *plan.Plan) DistrictModel {
	return DistrictModel{
		Plan:   p,
		Height: 12,
	}
}

func (m DistrictModel) Init() tea.Cmd {
	return nil
}

func (m DistrictModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Plan.Districts)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 14
		if m.Height < 4 {
			m.Height = 4
		}
	}
	return m, nil
}

func (m DistrictModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Plan " + m.Plan.ID))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Plan.Districts) {
		end = len(m.Plan.Districts)
	}

	groups := m.Plan.Params.MinorityGroups
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		d := &m.Plan.Districts[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			fmt.Sprintf("%d", d.ID),
			formatCount(d.Population),
			formatSignedPercent(d.Deviation),
			fmt.Sprintf("%.3f", d.Compactness),
			formatPercent(d.Lean),
			formatPercent(d.Share(groups)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers("", "District", "Population", "Dev", "Polsby-Popper", "Lean", "Minority").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(m.detailView())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Plan.Districts))))

	return b.String()
}

// detailView renders the selected district's units and demographics.
func (m DistrictModel) detailView() string {
	if m.Cursor >= len(m.Plan.Districts) {
		return ""
	}
	d := &m.Plan.Districts[m.Cursor]

	var b strings.Builder
	b.WriteString(StyleHighlight.Render(fmt.Sprintf("District %d", d.ID)))
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d units", len(d.Units))))
	b.WriteString("\n")

	for _, line := range unitLines(d.Units, maxUnitLines, 8) {
		b.WriteString("  " + listNormalStyle.Render(line) + "\n")
	}

	if len(d.Demographics) > 0 {
		parts := make([]string, 0, len(d.Demographics))
		for _, g := range sortedGroups(d.Demographics) {
			parts = append(parts, fmt.Sprintf("%s %s", g, formatCount(d.Demographics[g])))
		}
		b.WriteString(listDimStyle.Render("  " + strings.Join(parts, " · ")))
		b.WriteString("\n")
	}
	return b.String()
}

// unitLines chunks GEOIDs into at most maxLines rows of perLine entries,
// eliding the remainder.
func unitLines(units []string, maxLines, perLine int) []string {
	var lines []string
	for start := 0; start < len(units); start += perLine {
		if len(lines) == maxLines {
			lines = append(lines, fmt.Sprintf("… %d more", len(units)-start))
			break
		}
		end := start + perLine
		if end > len(units) {
			end = len(units)
		}
		lines = append(lines, strings.Join(units[start:end], " "))
	}
	return lines
}

// sortedGroups returns the demographic group names in sorted order.
func sortedGroups(demographics map[string]int64) []string {
	groups := make([]string, 0, len(demographics))
	for g := range demographics {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}
