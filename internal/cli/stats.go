package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show conversation and message counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return storeErr(fmt.Errorf("computing stats: %w", err))
		}

		var msg string
		if !w.JSONMode {
			msg = render.RenderStats(stats)
		}
		w.Success(stats, msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
