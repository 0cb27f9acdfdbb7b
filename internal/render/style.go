package render

import (
	"fmt"
	"strings"

	"ceph-check/internal/diagnose"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(purple)
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
	headingStyle = lipgloss.NewStyle().Foreground(purple).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(dim)
)

// marker returns the styled bullet for a severity.
func marker(s diagnose.Severity) string {
	switch s {
	case diagnose.SeverityOK:
		return successStyle.Render("✓")
	case diagnose.SeverityWarning:
		return warnStyle.Render("!")
	case diagnose.SeverityError:
		return errorStyle.Render("✗")
	default:
		return accentStyle.Render("●")
	}
}

func severityText(s diagnose.Severity) string {
	switch s {
	case diagnose.SeverityOK:
		return successStyle.Render(s.String())
	case diagnose.SeverityWarning:
		return warnStyle.Render(s.String())
	case diagnose.SeverityError:
		return errorStyle.Render(s.String())
	default:
		return accentStyle.Render(s.String())
	}
}

type pair struct {
	key   string
	value string
}

func kv(key, value string) pair { return pair{key: key, value: value} }

// keyValues renders aligned "key:  value" lines.
func keyValues(indent string, pairs ...pair) string {
	maxLen := 0
	for _, p := range pairs {
		if len(p.key) > maxLen {
			maxLen = len(p.key)
		}
	}

	var sb strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", maxLen+1, p.key+":")
		sb.WriteString(indent + labelStyle.Render(label) + " " + p.value + "\n")
	}
	return sb.String()
}

// renderTable draws rows with rounded borders.
func renderTable(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return cellStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}
