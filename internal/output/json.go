package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"golang.org/x/term"
)

// SchemaVersion is stamped on every response envelope.
const SchemaVersion = "v1"

// Response represents a standard JSON response
type Response struct {
	SchemaVersion   string            `json:"schema_version"`
	Success         bool              `json:"success"`
	Data            any               `json:"data,omitempty"`
	Error           string            `json:"error,omitempty"`
	ErrorCode       string            `json:"error_code,omitempty"`
	ErrorContext    map[string]string `json:"error_context,omitempty"`
	UserMessage     string            `json:"user_message,omitempty"`
	SuggestedAction string            `json:"suggested_action,omitempty"`
}

// recoverableError mirrors models.RecoverableError without importing models.
type recoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

// userFacingError carries a message fit to show an end user in place of the
// raw error text.
type userFacingError interface {
	error
	UserMessage() string
}

// Config controls where and how responses are written.
type Config struct {
	Writer io.Writer
	Pretty bool
}

// DefaultConfig writes to stdout. ANALYTICKET_PRETTY_JSON=1|true forces
// indented output and 0|false forces compact; unset, output is indented only
// when stdout is a terminal.
func DefaultConfig() Config {
	return Config{Writer: os.Stdout, Pretty: prettyFromEnv(os.Getenv("ANALYTICKET_PRETTY_JSON"), stdoutIsTerminal)}
}

func stdoutIsTerminal() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

func prettyFromEnv(v string, isTerminal func() bool) bool {
	switch v {
	case "1", "true":
		return true
	case "0", "false":
		return false
	default:
		return isTerminal()
	}
}

// Success wraps a successful response with data
func Success(data any) Response {
	return Response{
		SchemaVersion: SchemaVersion,
		Success:       true,
		Data:          data,
	}
}

// Error wraps an error in a response. Errors carrying a code, context,
// user-facing message or remediation hint populate the enriched fields.
func Error(err error) Response {
	resp := Response{
		SchemaVersion: SchemaVersion,
		Success:       false,
		Error:         err.Error(),
	}
	var re recoverableError
	if errors.As(err, &re) {
		resp.ErrorCode = re.ErrorCode()
		resp.ErrorContext = re.Context()
		resp.SuggestedAction = re.SuggestedAction()
	}
	var ue userFacingError
	if errors.As(err, &ue) {
		resp.UserMessage = ue.UserMessage()
	}
	return resp
}

// PrintWith writes v as JSON using cfg.
func PrintWith(cfg Config, v any) error {
	enc := json.NewEncoder(cfg.Writer)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print prints a value as JSON to stdout
func Print(v any) error {
	return PrintWith(DefaultConfig(), v)
}

// PrintSuccess prints a success response
func PrintSuccess(data any) error {
	return Print(Success(data))
}

// PrintError prints an error response
func PrintError(err error) error {
	return Print(Error(err))
}
