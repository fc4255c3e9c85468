package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
	"github.com/ALT-F4-LLC/llm-unify/internal/search"
)

const (
	maxTitleWidth   = 40
	maxSnippetWidth = 60
	shortIDWidth    = 8
)

// StyledText applies a lipgloss style to text when colors are enabled.
// When colors are disabled, it returns the plain text unchanged.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// ColorFromName maps model color name strings to lipgloss colors.
func ColorFromName(name string) lipgloss.Color {
	switch name {
	case "red":
		return lipgloss.Color("9")
	case "yellow":
		return lipgloss.Color("11")
	case "blue":
		return lipgloss.Color("12")
	case "green":
		return lipgloss.Color("10")
	case "magenta":
		return lipgloss.Color("13")
	case "cyan":
		return lipgloss.Color("14")
	case "gray":
		return lipgloss.Color("8")
	default:
		return lipgloss.Color("15")
	}
}

// truncate shortens a string to maxLen runes, appending an ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// ShortID returns the leading characters of a conversation id for tables.
func ShortID(id string) string {
	return truncate(id, shortIDWidth)
}

// flatten collapses newlines so a value fits on one table row.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// timeLabel renders t relative to now; zero times render as "-".
func timeLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// EmptyState renders a styled empty-state message with an optional contextual hint.
// When colors are enabled the message is rendered in dim gray and the hint is italic.
// When quiet is true the hint is suppressed.
func EmptyState(message, hint string, quiet bool) string {
	if !ColorsEnabled() {
		if quiet || hint == "" {
			return message
		}
		return message + "\n" + hint
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	result := dimStyle.Render(message)
	if !quiet && hint != "" {
		result += "\n" + hintStyle.Render(hint)
	}
	return result
}

// styledTable builds the bordered table shared by list views. colorOf picks
// the foreground for a body cell; an empty name leaves the cell unstyled.
func styledTable(headers []string, rows [][]string, colorOf func(row, col int) string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if row < 0 || row >= len(rows) {
				return s
			}
			if name := colorOf(row, col); name != "" {
				return s.Foreground(ColorFromName(name))
			}
			return s
		})
	return t.Render()
}

// RenderConversationTable renders conversation summaries as a table.
func RenderConversationTable(convs []model.ConversationSummary) string {
	if len(convs) == 0 {
		return EmptyState("No conversations found.", "Import some with: llm-unify import <provider> <file>", false)
	}

	rows := make([][]string, 0, len(convs))
	for _, c := range convs {
		rows = append(rows, []string{
			ShortID(c.ID),
			c.Provider.DisplayName(),
			truncate(flatten(titleOf(c.Title)), maxTitleWidth),
			strconv.Itoa(c.MessageCount),
			timeLabel(c.CreatedAt),
		})
	}

	if !ColorsEnabled() {
		return renderPlainConversations(rows)
	}

	headers := []string{"ID", "Provider", "Title", "Messages", "Created"}
	return styledTable(headers, rows, func(row, col int) string {
		switch col {
		case 0:
			return "white"
		case 1:
			return convs[row].Provider.Color()
		case 4:
			return "gray"
		default:
			return ""
		}
	})
}

func renderPlainConversations(rows [][]string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-10s %-16s %-40s %-9s %s\n", "ID", "Provider", "Title", "Messages", "Created")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 92))
	for _, r := range rows {
		fmt.Fprintf(&b, "%-10s %-16s %-40s %-9s %s\n", r[0], r[1], r[2], r[3], r[4])
	}

	return b.String()
}

// RenderSearchResults renders ranked search hits with their snippets.
// Highlight marks in snippets become bold text when colors are enabled.
func RenderSearchResults(results []search.Result, query string) string {
	if len(results) == 0 {
		return EmptyState(fmt.Sprintf("No results for %q.", query), "Try fewer terms or a prefix such as: sql*", false)
	}

	rows := make([][]string, 0, len(results))
	for i, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			ShortID(r.ConversationID),
			r.Provider.DisplayName(),
			truncate(flatten(titleOf(r.ConversationTitle)), maxTitleWidth),
			string(r.Role),
			fmt.Sprintf("%.2f", r.Score),
		})
	}

	if !ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "%-3s %-10s %-16s %-40s %-10s %s\n", "#", "ID", "Provider", "Title", "Role", "Score")
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 90))
		for i, r := range rows {
			fmt.Fprintf(&b, "%-3s %-10s %-16s %-40s %-10s %s\n", r[0], r[1], r[2], r[3], r[4], r[5])
			fmt.Fprintf(&b, "    %s\n", plainSnippet(results[i].Snippet))
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString(styledTable([]string{"#", "ID", "Provider", "Title", "Role", "Score"}, rows, func(row, col int) string {
		switch col {
		case 2:
			return results[row].Provider.Color()
		case 4:
			return results[row].Role.Color()
		default:
			return ""
		}
	}))
	b.WriteString("\n")
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	for i, r := range results {
		fmt.Fprintf(&b, "%s %s\n", dim.Render(fmt.Sprintf("%d.", i+1)), styledSnippet(r.Snippet))
	}
	return strings.TrimRight(b.String(), "\n")
}

func titleOf(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}

// plainSnippet keeps highlight boundaries visible without escape codes.
func plainSnippet(s string) string {
	s = strings.ReplaceAll(s, search.Open, "[")
	s = strings.ReplaceAll(s, search.Close, "]")
	return truncate(s, maxSnippetWidth*2)
}

func styledSnippet(s string) string {
	mark := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	var b strings.Builder
	for {
		start := strings.Index(s, search.Open)
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], search.Close)
		if end < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		b.WriteString(mark.Render(s[start+len(search.Open) : start+end]))
		s = s[start+end+len(search.Close):]
	}
	return b.String()
}
