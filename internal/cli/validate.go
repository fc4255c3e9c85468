package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/render"
	"github.com/ALT-F4-LLC/llm-unify/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the database for corruption and inconsistencies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)

		report, err := validate.Validate(cmd.Context(), store)
		if err != nil {
			return storeErr(fmt.Errorf("validating database: %w", err))
		}

		var msg string
		if !w.JSONMode {
			msg = render.RenderReport(report)
		}
		if err := report.Err(); err != nil {
			return failWith(err, report, msg)
		}
		w.Success(report, msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
