// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides user-facing errors for the doctown CLI and the
// HTTP status mapping used by the services.
//
// A UserError carries three levels of information so that a failure can be
// acted on without reading logs:
//
//	Error: Cannot download repository
//	Cause: GitHub answered 404 for acme/missing
//	Fix:   Check the repository URL and that the repository is public
//
// Errors returned by the pipeline packages are plain wrapped errors. Use
// Classify to turn them into a UserError at the CLI boundary and HTTPStatus
// to pick a response code in the servers.
//
// # Exit Codes
//
//   - ExitSuccess (0): Successful execution
//   - ExitConfig (1): Configuration errors (missing/invalid config)
//   - ExitIntegrity (2): Docpack verification failed (checksum, schema, missing entry)
//   - ExitNetwork (3): Network/API errors (download, embedder, rate limits)
//   - ExitInput (4): Invalid user input (bad arguments, URLs, job ids)
//   - ExitCancelled (5): Interrupted by the user
//   - ExitNotFound (6): Resource not found (repository, file)
//   - ExitInternal (10): Internal errors (bugs, panics)
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/chunk"
	"github.com/kraklabs/doctown/pkg/docpack"
	"github.com/kraklabs/doctown/pkg/embedder"
	"github.com/kraklabs/doctown/pkg/ids"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/packer"
)

// Exit codes for different error categories.
const (
	ExitSuccess   = 0
	ExitConfig    = 1
	ExitIntegrity = 2
	ExitNetwork   = 3
	ExitInput     = 4
	ExitCancelled = 5
	ExitNotFound  = 6
	// ExitInternal signals "this is a bug that should be reported".
	ExitInternal  = 10
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
//
// UserError also carries an exit code for consistent CLI exit behavior
// and optionally wraps an underlying error for errors.Is/As.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

// Error returns the message, followed by the underlying error if any.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError creates a configuration error with exit code ExitConfig.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewIntegrityError creates a docpack verification error with exit code
// ExitIntegrity.
func NewIntegrityError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitIntegrity, msg, cause, fix, err)
}

// NewNetworkError creates a network error with exit code ExitNetwork.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError creates an input validation error with exit code ExitInput.
// Input errors typically do not wrap an underlying error.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewNotFoundError creates a resource not found error with exit code
// ExitNotFound.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, nil)
}

// NewInternalError creates an internal error with exit code ExitInternal.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

// Classify maps an error from the pipeline packages to a UserError. A
// UserError anywhere in the chain is returned as is; unknown errors become
// internal errors.
func Classify(err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue
	}

	cause := err.Error()
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, ingestion.ErrCancelled):
		return newUserError(ExitCancelled, "Interrupted", "The run was cancelled before it finished", "", err)
	case stderrors.Is(err, ingestion.ErrInvalidURL):
		return newUserError(ExitInput, "Invalid repository URL", cause,
			"Use a URL like https://github.com/owner/repo or a local .zip or directory", err)
	case stderrors.Is(err, ids.ErrInvalidID),
		stderrors.Is(err, assembly.ErrInvalidRequest),
		stderrors.Is(err, packer.ErrInvalidRequest),
		stderrors.Is(err, chunk.ErrInvalidConfig):
		return newUserError(ExitInput, "Invalid input", cause, "", err)
	case stderrors.Is(err, ingestion.ErrRepoNotFound):
		return newUserError(ExitNotFound, "Repository not found", cause,
			"Check the repository URL and that the repository is public", err)
	case stderrors.Is(err, ingestion.ErrRateLimited):
		return newUserError(ExitNetwork, "GitHub rate limit reached", cause,
			"Wait for the limit to reset or download the archive and pass the .zip path", err)
	case stderrors.Is(err, ingestion.ErrRepoTooLarge):
		return newUserError(ExitInput, "Repository is too large", cause,
			"Raise ingest.max_repo_size in the config file", err)
	case stderrors.Is(err, embedder.ErrUnhealthy):
		return newUserError(ExitNetwork, "Embedder is not available", cause,
			"Start the embedding worker or check embedder.url", err)
	case stderrors.Is(err, docpack.ErrMissingFile),
		stderrors.Is(err, docpack.ErrChecksumMismatch),
		stderrors.Is(err, docpack.ErrSchemaVersionMismatch),
		stderrors.Is(err, docpack.ErrInvalidHeader),
		stderrors.Is(err, docpack.ErrCorruptEmbeddings):
		return newUserError(ExitIntegrity, "Docpack failed verification", cause,
			"Regenerate the docpack; the file is damaged or was produced by an incompatible writer", err)
	case stderrors.Is(err, fs.ErrNotExist):
		return newUserError(ExitNotFound, "File not found", cause, "", err)
	}
	return newUserError(ExitInternal, "Unexpected error", cause,
		"This is a bug. Please report it at github.com/kraklabs/doctown/issues", err)
}

// HTTPStatus picks the response status for an error returned by a service
// handler: 400 for invalid input, 404 for unknown repositories, 429 when
// rate limited, 499 when the client went away, and 500 otherwise.
// Clustering failures (empty input, too many clusters, bad dimensions) are
// server errors.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ingestion.ErrInvalidURL),
		stderrors.Is(err, ids.ErrInvalidID),
		stderrors.Is(err, assembly.ErrInvalidRequest),
		stderrors.Is(err, packer.ErrInvalidRequest),
		stderrors.Is(err, docpack.ErrInvalidDimensions):
		return http.StatusBadRequest
	case stderrors.Is(err, ingestion.ErrRepoNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ingestion.ErrRateLimited):
		return http.StatusTooManyRequests
	case stderrors.Is(err, ingestion.ErrRepoTooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output includes colored sections for Error (red/bold), Cause (yellow),
// and Fix (green). Color output respects the NO_COLOR environment variable
// and can be explicitly disabled with the noColor parameter. Empty Cause or
// Fix fields are omitted.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the classified error and exits with its code.
//
// This function never returns - it always calls os.Exit().
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	ue := Classify(err)
	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		// Encode error is ignored since we're about to exit.
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, ue.Format(false))
	}
	os.Exit(ue.ExitCode)
}
