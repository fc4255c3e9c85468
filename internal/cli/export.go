package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/envelope"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
)

type exportResult struct {
	Path          string `json:"path"`
	Conversations int    `json:"conversations"`
	Mode          string `json:"mode"`
	Bytes         int    `json:"bytes"`
}

var exportCmd = &cobra.Command{
	Use:   "export [<id>...]",
	Short: "Export conversations as JSON",
	Long: "Export conversations as JSON. By default the document is wrapped in a versioned\n" +
		"envelope; --raw emits the bare payload. Output can be re-imported with 'import native'.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		store := getStore(cmd)
		ctx := cmd.Context()

		all, _ := cmd.Flags().GetBool("all")
		raw, _ := cmd.Flags().GetBool("raw")
		outPath, _ := cmd.Flags().GetString("output")
		pretty, _ := cmd.Flags().GetBool("pretty")

		if all == (len(args) > 0) {
			return cmdErr(fmt.Errorf("specify conversation ids or --all, not both"), output.ErrValidation)
		}

		ids := args
		if all {
			ids = nil
			for c, err := range store.ListConversations(ctx, db.ListOptions{}) {
				if err != nil {
					return storeErr(fmt.Errorf("listing conversations: %w", err))
				}
				ids = append(ids, c.ID)
			}
		}

		convs := make([]*model.Conversation, 0, len(ids))
		for _, id := range ids {
			c, err := store.GetConversation(ctx, id)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return cmdErr(fmt.Errorf("conversation %s not found", id), output.ErrNotFound)
				}
				return storeErr(fmt.Errorf("fetching conversation %s: %w", id, err))
			}
			convs = append(convs, c)
		}

		var payload any = convs
		if !all && len(convs) == 1 {
			payload = convs[0]
		}

		schemaVersion, err := store.SchemaVersion(ctx)
		if err != nil {
			return storeErr(fmt.Errorf("reading schema version: %w", err))
		}

		mode := envelope.ModeVersioned
		if raw {
			mode = envelope.ModeRaw
		}
		doc, err := envelope.Export(payload, mode, envelope.Options{SchemaVersion: schemaVersion})
		if err != nil {
			return cmdErr(fmt.Errorf("encoding export: %w", err), output.ErrGeneral)
		}
		if pretty {
			if doc, err = envelope.Indent(doc); err != nil {
				return cmdErr(fmt.Errorf("formatting export: %w", err), output.ErrGeneral)
			}
		}

		if outPath == "" || outPath == "-" {
			if w.JSONMode {
				w.Success(json.RawMessage(doc), "")
				return nil
			}
			if err := w.Raw(doc); err != nil {
				return cmdErr(fmt.Errorf("writing export: %w", err), output.ErrGeneral)
			}
			return nil
		}

		if err := writeFileAtomic(outPath, doc); err != nil {
			return cmdErr(fmt.Errorf("writing %s: %w", outPath, err), output.ErrGeneral)
		}
		w.Success(exportResult{
			Path:          outPath,
			Conversations: len(convs),
			Mode:          mode.String(),
			Bytes:         len(doc),
		}, fmt.Sprintf("Exported %d conversation(s) to %s", len(convs), outPath))
		return nil
	},
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".llm-unify-export-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func init() {
	exportCmd.Flags().Bool("all", false, "Export every conversation")
	exportCmd.Flags().Bool("raw", false, "Emit the bare payload without the versioned envelope")
	exportCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	exportCmd.Flags().Bool("pretty", false, "Indent the JSON output")
	rootCmd.AddCommand(exportCmd)
}
