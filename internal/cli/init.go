package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

type initResult struct {
	DBPath        string `json:"db_path"`
	SchemaVersion int    `json:"schema_version"`
	Applied       int    `json:"applied"`
	Created       bool   `json:"created"`
}

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Create the database or apply pending schema migrations",
	Annotations: map[string]string{"skipDB": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		ctx := cmd.Context()

		exists, err := cfg.Exists()
		if err != nil {
			return cmdErr(fmt.Errorf("checking database: %w", err), output.ErrGeneral)
		}

		if !exists {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return cmdErr(fmt.Errorf("creating directory: %w", err), output.ErrGeneral)
			}
		}

		registry := db.DefaultRegistry()
		before := 0
		if exists {
			conn, err := db.Open(cfg.DBPath)
			if err != nil {
				return storeErr(fmt.Errorf("opening database: %w", err))
			}
			before, err = registry.CurrentVersion(ctx, conn)
			conn.Close()
			if err != nil {
				return storeErr(fmt.Errorf("reading schema version: %w", err))
			}
		}

		store, err := db.OpenStore(ctx, cfg.DBPath, registry)
		if err != nil {
			return storeErr(fmt.Errorf("initializing schema: %w", err))
		}
		defer store.Close()

		schemaVersion, err := store.SchemaVersion(ctx)
		if err != nil {
			return storeErr(fmt.Errorf("reading schema version: %w", err))
		}

		result := initResult{
			DBPath:        cfg.DBPath,
			SchemaVersion: schemaVersion,
			Applied:       schemaVersion - before,
			Created:       !exists,
		}

		var msg string
		switch {
		case !exists:
			msg = render.StyledText("Initialized llm-unify database", lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")))
		case result.Applied > 0:
			msg = fmt.Sprintf("Migrated database to schema v%d (%d step(s) applied)", schemaVersion, result.Applied)
		default:
			w.Warn("Database already exists at %s", cfg.DBPath)
			msg = render.StyledText("Database already initialized", lipgloss.NewStyle().Foreground(lipgloss.Color("3")))
		}
		w.Success(result, msg)

		if !exists {
			w.Info("Database created at %s", cfg.DBPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
