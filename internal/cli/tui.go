package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/search"
	"github.com/ALT-F4-LLC/llm-unify/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse and search conversations interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)

		if w.JSONMode || !interactive() {
			return cmdErr(fmt.Errorf("tui needs an interactive terminal"), output.ErrValidation)
		}
		if err := tui.Run(cmd.Context(), store, search.New(store)); err != nil {
			return storeErr(fmt.Errorf("running tui: %w", err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
