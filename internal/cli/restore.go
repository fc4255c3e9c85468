package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/backup"
	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Replace the database with a verified backup",
	Long: "Replace the database with the backup at <path> after checking it against its\n" +
		"checksum metadata. The current database is kept beside it with a .old suffix.",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"skipDB": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		yes, _ := cmd.Flags().GetBool("yes")
		rollback, _ := cmd.Flags().GetBool("rollback-on-invalid")

		exists, err := cfg.Exists()
		if err != nil {
			return cmdErr(fmt.Errorf("checking database: %w", err), output.ErrGeneral)
		}
		if exists && !yes {
			if w.JSONMode || !interactive() {
				return cmdErr(fmt.Errorf("refusing to replace %s without --yes", cfg.DBPath), output.ErrValidation)
			}
			confirmed, err := confirm(
				fmt.Sprintf("Replace %s with %s? The current database is kept as %s.", cfg.DBPath, args[0], cfg.DBPath+backup.OldSuffix),
				"Yes, restore",
			)
			if err != nil {
				return cmdErr(fmt.Errorf("interactive form failed: %w", err), output.ErrGeneral)
			}
			if !confirmed {
				w.Info("Cancelled.")
				return nil
			}
		}

		res, err := backup.Restore(cmd.Context(), args[0], cfg.DBPath, backup.RestoreOptions{
			Registry:          db.DefaultRegistry(),
			RollbackOnInvalid: rollback,
		})
		if err != nil {
			if res == nil {
				return storeErr(fmt.Errorf("restoring backup: %w", err))
			}
			var msg string
			if !w.JSONMode {
				msg = render.RenderReport(res.Report)
				if res.RolledBack {
					msg += "\nRolled back to the previous database"
				}
			}
			return failWith(fmt.Errorf("restoring backup: %w", err), res, msg)
		}

		msg := fmt.Sprintf("Restored %s (schema v%d) to %s", args[0], res.Metadata.SchemaVersion, cfg.DBPath)
		w.Success(res, msg)
		if res.PreviousPath != "" {
			w.Info("Previous database kept at %s", res.PreviousPath)
		}
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolP("yes", "y", false, "Replace an existing database without asking")
	restoreCmd.Flags().Bool("rollback-on-invalid", false, "Put the previous database back if the restored one fails validation")
	rootCmd.AddCommand(restoreCmd)
}
