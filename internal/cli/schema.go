package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

type schemaResult struct {
	Current int                   `json:"current"`
	Latest  int                   `json:"latest"`
	Pending int                   `json:"pending"`
	History []model.SchemaVersion `json:"history"`
}

// schemaCmd reads the database directly so that pending migrations are
// reported rather than applied.
var schemaCmd = &cobra.Command{
	Use:         "schema",
	Short:       "Show the schema version and migration history",
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
			return cmdErr(fmt.Errorf("no database found at %s, run 'llm-unify init' to create one", cfg.DBPath), output.ErrNotFound)
		}

		conn, err := db.Open(cfg.DBPath)
		if err != nil {
			return storeErr(fmt.Errorf("opening database: %w", err))
		}
		defer conn.Close()

		registry := db.DefaultRegistry()
		current, err := registry.CurrentVersion(ctx, conn)
		if err != nil {
			return storeErr(fmt.Errorf("reading schema version: %w", err))
		}
		history, err := registry.History(ctx, conn)
		if err != nil {
			return storeErr(fmt.Errorf("reading schema history: %w", err))
		}

		result := schemaResult{
			Current: current,
			Latest:  registry.Latest(),
			Pending: max(registry.Latest()-current, 0),
			History: history,
		}

		var msg string
		if !w.JSONMode {
			msg = render.RenderSchema(current, registry.Latest(), history)
		}
		if !registry.Supports(current) {
			return failWith(&db.SchemaVersionUnsupportedError{Found: current, Latest: registry.Latest()}, result, msg)
		}
		w.Success(result, msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
