package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// DuplicatePart indicates two export blocks in one script declare the same name
	DuplicatePart ErrorCode = "DUPLICATE_PART"
	// MissingDependency indicates a project file referenced by an import could not be read
	MissingDependency ErrorCode = "MISSING_DEPENDENCY"
	// MissingExternal indicates an external or library file could not be fetched
	MissingExternal ErrorCode = "MISSING_EXTERNAL"
	// EngineFailed indicates the geometry engine exited non-zero or produced no mesh
	EngineFailed ErrorCode = "ENGINE_FAILED"
	// EngineUnavailable indicates the geometry engine binary could not be started
	EngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// StorageFailed indicates the render cache or run history could not be used
	StorageFailed ErrorCode = "STORAGE_FAILED"
	// ExportFailed indicates a rendered mesh could not be written to its sink
	ExportFailed ErrorCode = "EXPORT_FAILED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditScript suggests changing the script being processed
	EditScript FixActionType = "edit-script"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// ForgeError represents a scadforge error with code, message, and suggestions
type ForgeError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a ForgeError carrying the default suggested fixes for its code
func New(code ErrorCode, message string, cause error) *ForgeError {
	return &ForgeError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *ForgeError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *ForgeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ForgeError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ForgeError) WithDetails(details interface{}) *ForgeError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first ForgeError in err's chain,
// or the empty code when there is none.
func CodeOf(err error) ErrorCode {
	var fe *ForgeError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a ForgeError with the given code
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	DuplicatePart: {
		{
			Type:        EditScript,
			Description: "Give every '// @export' marker in the script a unique name",
		},
	},
	MissingDependency: {
		{
			Type:        RunCommand,
			Command:     "scadforge imports ${script}",
			Safe:        true,
			Description: "List the include graph to find the unresolved file",
		},
	},
	MissingExternal: {
		{
			Type:        RunCommand,
			Command:     "scadforge catalog ${library_dir}",
			Safe:        true,
			Description: "Rebuild the library catalog",
		},
	},
	EngineUnavailable: {
		{
			Type:        InstallTool,
			Tool:        "openscad",
			Description: "Install the geometry engine or set engine.command in .scadforge/config.json",
		},
	},
	StorageFailed: {
		{
			Type:        RunCommand,
			Command:     "scadforge cache clear",
			Safe:        true,
			Description: "Drop the render cache",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
