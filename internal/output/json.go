package output

import (
	"encoding/json"
	"io"
)

// ErrorCode represents a machine-readable error classification.
type ErrorCode string

// Error code constants.
const (
	ErrGeneral                  ErrorCode = "GENERAL_ERROR"
	ErrNotFound                 ErrorCode = "NOT_FOUND"
	ErrValidation               ErrorCode = "VALIDATION_ERROR"
	ErrConflict                 ErrorCode = "CONFLICT"
	ErrParse                    ErrorCode = "PARSE_ERROR"
	ErrStore                    ErrorCode = "STORE_ERROR"
	ErrMigrationFailed          ErrorCode = "MIGRATION_FAILED"
	ErrSchemaVersionUnsupported ErrorCode = "SCHEMA_VERSION_UNSUPPORTED"
	ErrChecksumMismatch         ErrorCode = "CHECKSUM_MISMATCH"
	ErrIntegrityCheckFailed     ErrorCode = "INTEGRITY_CHECK_FAILED"
	ErrLogicalInconsistency     ErrorCode = "LOGICAL_INCONSISTENCY"
)

// Exit code constants.
const (
	ExitSuccess                  = 0
	ExitGeneral                  = 1
	ExitNotFound                 = 2
	ExitValidation               = 3
	ExitConflict                 = 4
	ExitParse                    = 5
	ExitStore                    = 6
	ExitMigrationFailed          = 7
	ExitSchemaVersionUnsupported = 8
	ExitChecksumMismatch         = 9
	ExitIntegrityCheckFailed     = 10
	ExitLogicalInconsistency     = 11
)

var exitCodes = map[ErrorCode]int{
	ErrNotFound:                 ExitNotFound,
	ErrValidation:               ExitValidation,
	ErrConflict:                 ExitConflict,
	ErrParse:                    ExitParse,
	ErrStore:                    ExitStore,
	ErrMigrationFailed:          ExitMigrationFailed,
	ErrSchemaVersionUnsupported: ExitSchemaVersionUnsupported,
	ErrChecksumMismatch:         ExitChecksumMismatch,
	ErrIntegrityCheckFailed:     ExitIntegrityCheckFailed,
	ErrLogicalInconsistency:     ExitLogicalInconsistency,
}

// ExitCodeForError maps an ErrorCode to its corresponding exit code.
func ExitCodeForError(code ErrorCode) int {
	if c, ok := exitCodes[code]; ok {
		return c
	}
	return ExitGeneral
}

// successEnvelope is the JSON structure for successful responses.
type successEnvelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// errorEnvelope is the JSON structure for error responses. Data carries
// details such as a failed validation report.
type errorEnvelope struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
	Data  any       `json:"data,omitempty"`
}

// writeJSONSuccess writes a success envelope to w.
func writeJSONSuccess(w io.Writer, data any, message string) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(successEnvelope{
		OK:      true,
		Data:    data,
		Message: message,
	})
}

// writeJSONError writes an error envelope to w.
func writeJSONError(w io.Writer, err error, code ErrorCode, data any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(errorEnvelope{
		OK:    false,
		Error: err.Error(),
		Code:  code,
		Data:  data,
	})
}
