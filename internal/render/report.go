package render

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/llm-unify/internal/backup"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
	"github.com/ALT-F4-LLC/llm-unify/internal/validate"
)

// RenderStats renders store totals with the per-provider breakdown.
func RenderStats(s *model.Stats) string {
	var b strings.Builder

	label := lipgloss.NewStyle().Bold(true)
	fmt.Fprintf(&b, "%s %s\n", StyledText("Conversations:", label), humanize.Comma(int64(s.Conversations)))
	fmt.Fprintf(&b, "%s      %s\n", StyledText("Messages:", label), humanize.Comma(int64(s.Messages)))
	b.WriteString("\n")

	for _, pc := range s.ByProvider {
		name := fmt.Sprintf("%-10s", pc.Provider.DisplayName())
		name = StyledText(name, lipgloss.NewStyle().Foreground(ColorFromName(pc.Provider.Color())))
		fmt.Fprintf(&b, "  %s %6s conversations %8s messages\n",
			name,
			humanize.Comma(int64(pc.Conversations)),
			humanize.Comma(int64(pc.Messages)),
		)
	}

	return strings.TrimRight(b.String(), "\n")
}

// RenderReport renders a validation report, listing every detail of a failed
// section.
func RenderReport(r validate.Report) string {
	var b strings.Builder
	writeSection(&b, "Structural", r.Structural)
	writeSection(&b, "Logical", r.Logical)
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, name string, s validate.Section) {
	status := "ok"
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	if !s.OK {
		status = fmt.Sprintf("failed (%d)", len(s.Details))
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	}
	fmt.Fprintf(b, "%-11s %s\n", name+":", StyledText(status, style))
	for _, d := range s.Details {
		fmt.Fprintf(b, "  - %s\n", d)
	}
}

// RenderBackupMetadata renders the sidecar of a backup file.
func RenderBackupMetadata(path string, m *backup.Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backup:   %s\n", path)
	fmt.Fprintf(&b, "Schema:   v%d\n", m.SchemaVersion)
	fmt.Fprintf(&b, "Size:     %s\n", humanize.Bytes(uint64(m.Size)))
	fmt.Fprintf(&b, "Created:  %s (%s)\n", m.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"), timeLabel(m.CreatedAt))
	fmt.Fprintf(&b, "SHA-256:  %s", m.Checksum)
	return b.String()
}

// RenderSchema renders the current schema version and the applied history.
func RenderSchema(current, latest int, history []model.SchemaVersion) string {
	var b strings.Builder

	status := "up to date"
	if current < latest {
		status = fmt.Sprintf("%d pending", latest-current)
	}
	fmt.Fprintf(&b, "Schema version %d of %d (%s)\n", current, latest, status)

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	for _, v := range history {
		fmt.Fprintf(&b, "  v%-3d %-50s %s\n", v.Version, v.Description,
			StyledText(timeLabel(v.AppliedAt), dim))
	}

	return strings.TrimRight(b.String(), "\n")
}
