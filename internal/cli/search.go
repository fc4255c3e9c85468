package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
	"github.com/ALT-F4-LLC/llm-unify/internal/search"
)

type searchResult struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Full-text search across all messages",
	Long: "Full-text search across all messages. Every term must appear in the same message;\n" +
		"a trailing * matches a prefix. Each conversation appears at most once.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)

		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")
		providerFlag, _ := cmd.Flags().GetString("provider")

		if limit < 1 {
			return cmdErr(fmt.Errorf("--limit must be at least 1"), output.ErrValidation)
		}

		filters := search.Filters{Limit: limit}
		if providerFlag != "" {
			p, err := model.ParseProvider(providerFlag)
			if err != nil {
				return cmdErr(err, output.ErrValidation)
			}
			filters.Provider = p
		}

		results, err := search.New(store).Search(cmd.Context(), query, filters)
		if err != nil {
			return storeErr(fmt.Errorf("searching: %w", err))
		}

		var msg string
		if !w.JSONMode {
			msg = render.RenderSearchResults(results, query)
		}
		w.Success(searchResult{Query: query, Results: results}, msg)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntP("limit", "n", search.DefaultLimit, "Maximum number of results")
	searchCmd.Flags().StringP("provider", "p", "", "Only search conversations from this provider")
	rootCmd.AddCommand(searchCmd)
}
