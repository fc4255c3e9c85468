package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/backup"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

type backupResult struct {
	Path     string           `json:"path"`
	Metadata *backup.Metadata `json:"metadata"`
	Verified bool             `json:"verified"`
}

var backupCmd = &cobra.Command{
	Use:   "backup <path>",
	Short: "Write a consistent, checksummed copy of the database",
	Long: "Write a consistent copy of the database to <path> and its checksum\n" +
		"metadata to <path>.meta.json. Existing files are never replaced unless --overwrite is given.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)
		ctx := cmd.Context()

		verify, _ := cmd.Flags().GetBool("verify")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		meta, err := backup.Backup(ctx, store, args[0], backup.BackupOptions{Overwrite: overwrite})
		if err != nil {
			return storeErr(fmt.Errorf("backing up database: %w", err))
		}

		if verify {
			if meta, err = backup.Verify(args[0]); err != nil {
				return storeErr(fmt.Errorf("verifying backup: %w", err))
			}
		}

		var msg string
		if !w.JSONMode {
			msg = render.RenderBackupMetadata(args[0], meta)
			if verify {
				msg += "\nChecksum verified"
			}
		}
		w.Success(backupResult{Path: args[0], Metadata: meta, Verified: verify}, msg)
		return nil
	},
}

func init() {
	backupCmd.Flags().Bool("verify", false, "Re-read the backup and check it against its checksum")
	backupCmd.Flags().Bool("overwrite", false, "Replace an existing backup at the same path")
	rootCmd.AddCommand(backupCmd)
}
