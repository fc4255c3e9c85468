package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/backup"
	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/envelope"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print llm-unify version information",
	Annotations: map[string]string{"skipDB": "true"},
	Run: func(cmd *cobra.Command, args []string) {
		w := getWriter(cmd)

		bold := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
		dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		msg := fmt.Sprintf("llm-unify version %s %s\n%s",
			render.StyledText(version, bold),
			render.StyledText(fmt.Sprintf("(commit: %s, built: %s)", commit, buildDate), dim),
			render.StyledText(fmt.Sprintf("schema v%d, export format v%d, backup format v%d",
				db.DefaultRegistry().Latest(), envelope.FormatVersion, backup.FormatVersion), dim),
		)

		w.Success(struct {
			Version       string `json:"version"`
			Commit        string `json:"commit"`
			BuildDate     string `json:"build_date"`
			SchemaVersion int    `json:"schema_version"`
			ExportFormat  int    `json:"export_format"`
			BackupFormat  int    `json:"backup_format"`
		}{
			Version:       version,
			Commit:        commit,
			BuildDate:     buildDate,
			SchemaVersion: db.DefaultRegistry().Latest(),
			ExportFormat:  envelope.FormatVersion,
			BackupFormat:  backup.FormatVersion,
		}, msg)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
