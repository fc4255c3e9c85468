package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/config"
	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

type configInfo struct {
	DBPath        string `json:"db_path"`
	DBFound       bool   `json:"db_found"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	SchemaVersion int    `json:"schema_version"`
	LogLevel      string `json:"log_level"`
	ConfigFile    string `json:"config_file"`
	Source        string `json:"source"`
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Display the resolved llm-unify configuration",
	Annotations: map[string]string{"skipDB": "true"},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		info := configInfo{
			DBPath:     cfg.DBPath,
			LogLevel:   cfg.LogLevel,
			ConfigFile: cfg.ConfigFile,
			Source:     pathSource(cmd, cfg),
		}

		exists, err := cfg.Exists()
		if err != nil {
			return cmdErr(fmt.Errorf("checking database: %w", err), output.ErrGeneral)
		}

		if exists {
			stat, err := os.Stat(cfg.DBPath)
			if err != nil {
				return cmdErr(fmt.Errorf("reading database file: %w", err), output.ErrGeneral)
			}

			conn, err := db.Open(cfg.DBPath)
			if err != nil {
				return storeErr(fmt.Errorf("opening database: %w", err))
			}
			defer conn.Close()

			info.SchemaVersion, err = db.DefaultRegistry().CurrentVersion(cmd.Context(), conn)
			if err != nil {
				return storeErr(fmt.Errorf("reading schema version: %w", err))
			}
			info.DBFound = true
			info.DBSizeBytes = stat.Size()
		} else {
			w.Warn("No database found. Run 'llm-unify init' to create one.")
		}

		var msg string
		if !w.JSONMode {
			msg = formatConfigHuman(info)
		}
		w.Success(info, msg)
		return nil
	},
}

// pathSource names the layer the database path came from.
func pathSource(cmd *cobra.Command, cfg *config.Config) string {
	switch {
	case cmd.Flags().Changed("database"):
		return "flag"
	case cfg.EnvVarSet:
		return "env"
	case cfg.DBPath != config.DefaultDBPath && cfg.ConfigFile != "":
		return "file"
	default:
		return "default"
	}
}

func formatConfigHuman(info configInfo) string {
	configFile := info.ConfigFile
	if configFile == "" {
		configFile = "(none)"
	}

	dbPath := info.DBPath
	if !info.DBFound {
		dbPath += " (not found)"
	}

	if !render.ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "Database path:   %s [%s]\n", dbPath, info.Source)
		if info.DBFound {
			fmt.Fprintf(&b, "Database size:   %s\n", humanize.Bytes(uint64(info.DBSizeBytes)))
			fmt.Fprintf(&b, "Schema version:  %d\n", info.SchemaVersion)
		}
		fmt.Fprintf(&b, "Log level:       %s\n", info.LogLevel)
		fmt.Fprintf(&b, "Config file:     %s", configFile)
		return b.String()
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	indicator := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("●")
	if !info.DBFound {
		indicator = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("●")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("llm-unify Configuration") + "\n\n")
	fmt.Fprintf(&b, "  %s %s %s %s\n", keyStyle.Render("Database path:"), indicator, valStyle.Render(dbPath), keyStyle.Render("["+info.Source+"]"))
	if info.DBFound {
		fmt.Fprintf(&b, "  %s  %s\n", keyStyle.Render("Database size:"), valStyle.Render(humanize.Bytes(uint64(info.DBSizeBytes))))
		fmt.Fprintf(&b, "  %s %s\n", keyStyle.Render("Schema version:"), valStyle.Render(fmt.Sprintf("%d", info.SchemaVersion)))
	}
	fmt.Fprintf(&b, "  %s      %s\n", keyStyle.Render("Log level:"), valStyle.Render(info.LogLevel))
	fmt.Fprintf(&b, "  %s    %s", keyStyle.Render("Config file:"), valStyle.Render(configFile))
	return b.String()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
