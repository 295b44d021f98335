// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"testing"

	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/docpack"
	"github.com/kraklabs/doctown/pkg/ids"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/packer"
)

// TestUserError_Error verifies the Error() method implementation.
func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err:  &UserError{Message: "Cannot download repository", Err: fmt.Errorf("status 502")},
			want: "Cannot download repository: status 502",
		},
		{
			name: "without underlying error",
			err:  &UserError{Message: "Invalid input"},
			want: "Invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("UserError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestUserError_Unwrap verifies errors.Is sees through a UserError.
func TestUserError_Unwrap(t *testing.T) {
	err := NewNetworkError("Cannot reach embedder", "", "", ingestion.ErrRateLimited)
	if !errors.Is(err, ingestion.ErrRateLimited) {
		t.Errorf("errors.Is(%v, ErrRateLimited) = false", err)
	}
	if NewInputError("x", "", "").Unwrap() != nil {
		t.Error("input error should not wrap")
	}
}

// TestExitCodes_Uniqueness verifies no two categories share an exit code.
func TestExitCodes_Uniqueness(t *testing.T) {
	codes := []int{ExitSuccess, ExitConfig, ExitIntegrity, ExitNetwork, ExitInput, ExitCancelled, ExitNotFound, ExitInternal}
	seen := make(map[int]bool)
	for _, c := range codes {
		if seen[c] {
			t.Errorf("exit code %d used twice", c)
		}
		seen[c] = true
	}
	if ExitInternal != 10 {
		t.Errorf("ExitInternal = %d, want 10", ExitInternal)
	}
}

// TestClassify verifies pipeline errors map to the right category.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid url", fmt.Errorf("parse: %w", ingestion.ErrInvalidURL), ExitInput},
		{"invalid job id", fmt.Errorf("job: %w", ids.ErrInvalidID), ExitInput},
		{"invalid assembly request", assembly.ErrInvalidRequest, ExitInput},
		{"invalid pack request", packer.ErrInvalidRequest, ExitInput},
		{"repo not found", ingestion.ErrRepoNotFound, ExitNotFound},
		{"rate limited", ingestion.ErrRateLimited, ExitNetwork},
		{"cancelled", context.Canceled, ExitCancelled},
		{"ingest cancelled", ingestion.ErrCancelled, ExitCancelled},
		{"checksum", &docpack.ChecksumError{Expected: "a", Actual: "b"}, ExitIntegrity},
		{"missing entry", &docpack.MissingFileError{Name: docpack.GraphFile}, ExitIntegrity},
		{"schema", docpack.ErrSchemaVersionMismatch, ExitIntegrity},
		{"no such file", fmt.Errorf("open x: %w", fs.ErrNotExist), ExitNotFound},
		{"unknown", fmt.Errorf("boom"), ExitInternal},
		{"already classified", NewConfigError("bad config", "", "", nil), ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.ExitCode != tt.want {
				t.Errorf("Classify(%v).ExitCode = %d, want %d", tt.err, got.ExitCode, tt.want)
			}
			if got.Message == "" {
				t.Error("Classify() returned an empty message")
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

// TestHTTPStatus verifies the status code chosen for handler errors.
func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ingestion.ErrInvalidURL, http.StatusBadRequest},
		{fmt.Errorf("job_id: %w", ids.ErrInvalidID), http.StatusBadRequest},
		{assembly.ErrInvalidRequest, http.StatusBadRequest},
		{packer.ErrInvalidRequest, http.StatusBadRequest},
		{ingestion.ErrRepoNotFound, http.StatusNotFound},
		{ingestion.ErrRateLimited, http.StatusTooManyRequests},
		{assembly.ErrEmptyInput, http.StatusInternalServerError},
		{assembly.ErrTooManyClusters, http.StatusInternalServerError},
		{fmt.Errorf("cluster: %w", assembly.ErrInvalidDimensions), http.StatusInternalServerError},
		{context.Canceled, 499},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// TestUserError_Format verifies the sections of the terminal output.
func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name    string
		err     *UserError
		want    []string
		notWant []string
	}{
		{
			name: "full error",
			err: &UserError{
				Message:  "Docpack failed verification",
				Cause:    "checksum mismatch",
				Fix:      "Regenerate the docpack",
				ExitCode: ExitIntegrity,
			},
			want: []string{"Error: Docpack failed verification", "Cause: checksum mismatch", "Fix:   Regenerate the docpack"},
		},
		{
			name:    "message only",
			err:     &UserError{Message: "Something failed", ExitCode: ExitInternal},
			want:    []string{"Error: Something failed"},
			notWant: []string{"Cause:", "Fix:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(true)
			for _, substr := range tt.want {
				if !strings.Contains(got, substr) {
					t.Errorf("Format() output missing %q\nGot: %s", substr, got)
				}
			}
			for _, substr := range tt.notWant {
				if strings.Contains(got, substr) {
					t.Errorf("Format() output has unexpected %q\nGot: %s", substr, got)
				}
			}
			if strings.Contains(got, "\x1b[") {
				t.Error("Format(true) output contains ANSI codes")
			}
		})
	}
}

// TestUserError_Format_NoColorEnv verifies that NO_COLOR is respected.
func TestUserError_Format_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out := (&UserError{Message: "Test error", Cause: "Test cause"}).Format(false)
	if strings.Contains(out, "\x1b[") {
		t.Error("Format() output contains ANSI codes despite NO_COLOR being set")
	}
}

// TestUserError_ToJSON verifies the JSON shape.
func TestUserError_ToJSON(t *testing.T) {
	data, err := json.Marshal(NewInputError("Invalid job id", "", "").ToJSON())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"error":"Invalid job id","exit_code":4}`
	if string(data) != want {
		t.Errorf("ToJSON() = %s, want %s", data, want)
	}
}
