// Package cli implements the llm-unify command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/llm-unify/internal/backup"
	"github.com/ALT-F4-LLC/llm-unify/internal/config"
	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/envelope"
	"github.com/ALT-F4-LLC/llm-unify/internal/ingest"
	"github.com/ALT-F4-LLC/llm-unify/internal/logging"
	"github.com/ALT-F4-LLC/llm-unify/internal/output"
	"github.com/ALT-F4-LLC/llm-unify/internal/search"
	"github.com/ALT-F4-LLC/llm-unify/internal/validate"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const (
	storeKey contextKey = "store"
	cfgKey   contextKey = "cfg"
)

// CmdError wraps an error with a machine-readable error code for structured output.
type CmdError struct {
	Err  error
	Code output.ErrorCode
}

func (e *CmdError) Error() string { return e.Err.Error() }

func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

// storeErr wraps err with the code matching its kind.
func storeErr(err error) *CmdError {
	return cmdErr(err, codeFor(err))
}

// codeFor classifies domain errors. More specific kinds are checked first
// since several of them also wrap ErrStore.
func codeFor(err error) output.ErrorCode {
	switch {
	case errors.Is(err, backup.ErrChecksumMismatch):
		return output.ErrChecksumMismatch
	case errors.Is(err, db.ErrSchemaVersionUnsupported):
		return output.ErrSchemaVersionUnsupported
	case errors.Is(err, db.ErrMigrationFailed):
		return output.ErrMigrationFailed
	case errors.Is(err, validate.ErrIntegrityCheckFailed):
		return output.ErrIntegrityCheckFailed
	case errors.Is(err, validate.ErrLogicalInconsistency):
		return output.ErrLogicalInconsistency
	case errors.Is(err, ingest.ErrParse), errors.Is(err, envelope.ErrUnsupportedFormat):
		return output.ErrParse
	case errors.Is(err, db.ErrNotFound):
		return output.ErrNotFound
	case errors.Is(err, backup.ErrDestinationExists):
		return output.ErrConflict
	case errors.Is(err, search.ErrEmptyQuery):
		return output.ErrValidation
	case errors.Is(err, db.ErrStore):
		return output.ErrStore
	default:
		return output.ErrGeneral
	}
}

var rootCmd = &cobra.Command{
	Use:     "llm-unify",
	Short:   "Local archive for LLM chat transcripts",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(config.Options{
			Database: cmd.Flags().Lookup("database"),
			LogLevel: cmd.Flags().Lookup("log-level"),
		})
		if err != nil {
			return cmdErr(fmt.Errorf("loading configuration: %w", err), output.ErrValidation)
		}
		if err := logging.Setup(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		ctx := context.WithValue(cmd.Context(), cfgKey, cfg)

		if _, ok := cmd.Annotations["skipDB"]; ok {
			cmd.SetContext(context.WithValue(ctx, storeKey, (*db.Store)(nil)))
			return nil
		}

		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			return cmdErr(
				fmt.Errorf("no database found at %s, run 'llm-unify init' to create one", cfg.DBPath),
				output.ErrNotFound,
			)
		}

		store, err := db.OpenStore(ctx, cfg.DBPath, db.DefaultRegistry())
		if err != nil {
			return storeErr(fmt.Errorf("opening database: %w", err))
		}
		log.Debug().Str("path", cfg.DBPath).Msg("store opened")

		cmd.SetContext(context.WithValue(ctx, storeKey, store))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		store, ok := cmd.Context().Value(storeKey).(*db.Store)
		if ok && store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("database", "d", "", "Database file (default llm-unify.db, env LLM_UNIFY_DB)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (env LLM_UNIFY_LOG_LEVEL)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func getWriter(cmd *cobra.Command) *output.Writer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return &output.Writer{
		JSONMode:  jsonMode,
		QuietMode: quietMode,
		Stdout:    cmd.OutOrStdout(),
		Stderr:    cmd.ErrOrStderr(),
	}
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getStore(cmd *cobra.Command) *db.Store {
	store, _ := cmd.Context().Value(storeKey).(*db.Store)
	return store
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	return execute(context.Background())
}

func execute(ctx context.Context) int {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return output.ExitSuccess
	}
	if cmd == nil {
		cmd = rootCmd
	}
	w := getWriter(cmd)

	var fe *failure
	if errors.As(err, &fe) {
		return w.Fail(fe.Err, fe.Code, fe.Data, fe.Message)
	}
	var ce *CmdError
	if errors.As(err, &ce) {
		code := ce.Code
		if code == output.ErrGeneral {
			code = codeFor(ce.Err)
		}
		return w.Error(ce.Err, code)
	}
	return w.Error(err, codeFor(err))
}

// failure is a CmdError that carries details for the error output, such as
// a validation report.
type failure struct {
	CmdError
	Data    any
	Message string
}

func failWith(err error, data any, message string) *failure {
	return &failure{CmdError: CmdError{Err: err, Code: codeFor(err)}, Data: data, Message: message}
}
