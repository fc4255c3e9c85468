package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
)

type listResult struct {
	Conversations []model.ConversationSummary `json:"conversations"`
	Total         int                         `json:"total"`
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List conversations, newest first",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)

		providerFlag, _ := cmd.Flags().GetString("provider")
		title, _ := cmd.Flags().GetString("title")
		limit, _ := cmd.Flags().GetInt("limit")

		if limit < 0 {
			return cmdErr(fmt.Errorf("--limit must not be negative"), output.ErrValidation)
		}

		opts := db.ListOptions{Title: title, Limit: limit}
		if providerFlag != "" {
			p, err := model.ParseProvider(providerFlag)
			if err != nil {
				return cmdErr(err, output.ErrValidation)
			}
			opts.Provider = p
		}

		convs := make([]model.ConversationSummary, 0)
		for c, err := range store.ListConversations(cmd.Context(), opts) {
			if err != nil {
				return storeErr(fmt.Errorf("listing conversations: %w", err))
			}
			convs = append(convs, c)
		}

		var msg string
		if !w.JSONMode {
			msg = render.RenderConversationTable(convs)
		}
		w.Success(listResult{Conversations: convs, Total: len(convs)}, msg)
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("provider", "p", "", "Only conversations from this provider")
	listCmd.Flags().StringP("title", "t", "", "Only conversations whose title contains this text")
	listCmd.Flags().IntP("limit", "n", 50, "Maximum number of conversations (0 for all)")
	rootCmd.AddCommand(listCmd)
}
