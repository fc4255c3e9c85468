package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/ingest"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
)

type importResult struct {
	Source        string              `json:"source"`
	Files         []ingest.FileResult `json:"files"`
	Conversations int                 `json:"conversations"`
	Messages      int                 `json:"messages"`
}

var importCmd = &cobra.Command{
	Use:   "import <source> <file>...",
	Short: "Import conversation exports",
	Long: "Import conversation exports from a provider (" + strings.Join(ingest.Sources(), ", ") + ").\n" +
		"Each file is stored in a single transaction; re-importing a file replaces its conversations.",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)

		source := strings.ToLower(args[0])
		if _, err := ingest.ParserFor(source); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		files, err := ingest.NewImporter(store).ImportFiles(cmd.Context(), source, args[1:])
		result := importResult{Source: source, Files: files}
		for _, f := range files {
			result.Conversations += f.Conversations
			result.Messages += f.Messages
		}

		var msg string
		if !w.JSONMode {
			msg = importSummary(result)
		}
		if err != nil {
			return failWith(err, result, msg)
		}
		w.Success(result, msg)
		return nil
	},
}

func importSummary(r importResult) string {
	var b strings.Builder
	for _, f := range r.Files {
		if f.Error != "" {
			fmt.Fprintf(&b, "  %s: failed\n", f.Path)
			continue
		}
		fmt.Fprintf(&b, "  %s: %d conversation(s), %d message(s)\n", f.Path, f.Conversations, f.Messages)
	}
	fmt.Fprintf(&b, "Imported %d conversation(s) and %d message(s) from %s", r.Conversations, r.Messages, r.Source)
	return b.String()
}

func init() {
	rootCmd.AddCommand(importCmd)
}
