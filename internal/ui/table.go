package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"

	"github.com/Vinitharameshchand/akai-itoo/internal/game"
)

// Export formats accepted by RoomStatsView.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// RoomStats is what `itoo rooms` reports about a relay.
type RoomStats struct {
	Relay       string
	Rooms       int
	Connections int
}

func (s RoomStats) rows() [][]string {
	return [][]string{
		{"Relay", s.Relay},
		{"Rooms", strconv.Itoa(s.Rooms)},
		{"Connections", strconv.Itoa(s.Connections)},
	}
}

// RoomStatsView renders stats in one of the export formats.
func RoomStatsView(stats RoomStats, format string) (string, error) {
	switch format {
	case FormatTable, "":
		return styledTable([]string{"Metric", "Value"}, stats.rows()), nil
	case FormatMarkdown, FormatCSV:
		tw := prettytable.NewWriter()
		tw.AppendHeader(prettytable.Row{"Metric", "Value"})
		for _, r := range stats.rows() {
			tw.AppendRow(prettytable.Row{r[0], r[1]})
		}
		if format == FormatMarkdown {
			return tw.RenderMarkdown(), nil
		}
		return tw.RenderCSV(), nil
	}
	return "", fmt.Errorf("unknown format %q (want table, markdown or csv)", format)
}

func styledTable(headers []string, rows [][]string) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RoomInfo is the banner shown once a command has joined its room.
type RoomInfo struct {
	RoomKey string
	Me      string
	Partner string
	Role    string
	Present bool
}

func (r RoomInfo) View() string {
	partner := r.Partner
	if partner == "" {
		partner = MutedStyle.Render("(solo)")
	}
	presence := MutedStyle.Render("not connected yet")
	if r.Present {
		presence = SuccessStyle.Render("here")
	}

	content := fmt.Sprintf("%s Joined room\n\n%s Room:     %s\n%s You:      %s (%s)\n%s Partner:  %s, %s",
		IconHeart,
		IconRoom, BoldStyle.Foreground(Primary).Render(r.RoomKey),
		IconPeer, r.Me, r.Role,
		IconPeer, partner, presence,
	)
	return SuccessBoxStyle.Render(content)
}

// BoardView draws a tic-tac-toe board. Empty squares show their key.
func BoardView(b game.Board) string {
	cells := make([][]string, 3)
	for row := range cells {
		cells[row] = make([]string, 3)
		for col := range cells[row] {
			i := row*3 + col
			switch b[i] {
			case "X":
				cells[row][col] = MarkXStyle.Render("X")
			case "O":
				cells[row][col] = MarkOStyle.Render("O")
			default:
				cells[row][col] = MutedStyle.Render(strconv.Itoa(i + 1))
			}
		}
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Muted)).
		BorderRow(true).
		BorderColumn(true).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return tableCellStyle
		})
	return strings.TrimRight(tbl.Render(), "\n")
}
