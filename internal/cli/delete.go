package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
)

type deleteResult struct {
	ID       string `json:"id"`
	Messages int    `json:"messages"`
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)
		ctx := cmd.Context()

		yes, _ := cmd.Flags().GetBool("yes")

		conv, err := store.GetConversation(ctx, args[0])
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return cmdErr(fmt.Errorf("conversation %s not found", args[0]), output.ErrNotFound)
			}
			return storeErr(fmt.Errorf("fetching conversation: %w", err))
		}

		if !yes {
			if w.JSONMode || !interactive() {
				return cmdErr(fmt.Errorf("refusing to delete %s without --yes", conv.ID), output.ErrValidation)
			}
			confirmed, err := confirm(fmt.Sprintf("Delete %q and its %d message(s)?", conv.TitleOrUntitled(), conv.MessageCount()), "Yes, delete it")
			if err != nil {
				return cmdErr(fmt.Errorf("interactive form failed: %w", err), output.ErrGeneral)
			}
			if !confirmed {
				w.Info("Cancelled.")
				return nil
			}
		}

		if err := store.DeleteConversation(ctx, conv.ID); err != nil {
			return storeErr(fmt.Errorf("deleting conversation: %w", err))
		}

		w.Success(deleteResult{ID: conv.ID, Messages: conv.MessageCount()},
			fmt.Sprintf("Deleted %s: %s (%d message(s))", conv.ID, conv.TitleOrUntitled(), conv.MessageCount()))
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}
