package render

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize/english"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

// RenderConversation renders a full conversation: a header with its metadata
// followed by every message in order. Message bodies are rendered as markdown.
func RenderConversation(c *model.Conversation) string {
	if !ColorsEnabled() {
		return renderPlainConversation(c)
	}

	sections := []string{renderHeader(c)}
	if len(c.Messages) == 0 {
		sections = append(sections, EmptyState("No messages.", "", true))
	}
	for _, m := range c.Messages {
		sections = append(sections, renderMessage(m))
	}

	return strings.Join(sections, "\n\n")
}

func renderHeader(c *model.Conversation) string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	providerStyle := lipgloss.NewStyle().
		Foreground(ColorFromName(c.Provider.Color())).
		Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	meta := fmt.Sprintf("%s · %s · created %s",
		c.ID,
		english.Plural(c.MessageCount(), "message", "messages"),
		timeLabel(c.CreatedAt),
	)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorFromName(c.Provider.Color())).
		Padding(0, 1).
		Render(fmt.Sprintf("%s  %s\n%s",
			providerStyle.Render(c.Provider.DisplayName()),
			titleStyle.Render(c.TitleOrUntitled()),
			dim.Render(meta),
		))
}

func renderMessage(m model.Message) string {
	roleStyle := lipgloss.NewStyle().
		Foreground(ColorFromName(m.Role.Color())).
		Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	header := roleStyle.Render(strings.ToUpper(string(m.Role)))
	if !m.CreatedAt.IsZero() {
		header += "  " + dim.Render(m.CreatedAt.Local().Format("2006-01-02 15:04"))
	}

	body, err := RenderMarkdown(m.Content)
	if err != nil {
		body = m.Content
	}
	return header + "\n" + body
}

func renderPlainConversation(c *model.Conversation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", c.TitleOrUntitled())
	fmt.Fprintf(&b, "ID:       %s\n", c.ID)
	fmt.Fprintf(&b, "Provider: %s\n", c.Provider.DisplayName())
	fmt.Fprintf(&b, "Messages: %d\n", c.MessageCount())
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Created:  %s\n", c.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}

	for _, m := range c.Messages {
		b.WriteString("\n")
		fmt.Fprintf(&b, "[%d] %s", m.Seq, m.Role)
		if !m.CreatedAt.IsZero() {
			fmt.Fprintf(&b, " (%s)", m.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		}
		b.WriteString("\n")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
