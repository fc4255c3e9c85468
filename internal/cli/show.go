package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation with all of its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)

		conv, err := store.GetConversation(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return cmdErr(fmt.Errorf("conversation %s not found", args[0]), output.ErrNotFound)
			}
			return storeErr(fmt.Errorf("fetching conversation: %w", err))
		}

		var msg string
		if !w.JSONMode {
			msg = render.RenderConversation(conv)
		}
		w.Success(conv, msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
