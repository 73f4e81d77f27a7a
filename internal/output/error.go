package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// NewErrorDetail flattens err into its displayable parts.
func NewErrorDetail(err error) ErrorDetail {
	var ae *avatarerr.AvatarError
	if errors.As(err, &ae) {
		msg := ae.Message
		if root := rootCause(ae); root != nil {
			msg = fmt.Sprintf("%s: %v", msg, root)
		}
		return ErrorDetail{
			Code:       ae.Code,
			Message:    msg,
			Details:    ae.Details,
			Suggestion: ae.Suggestion,
			ExitCode:   ae.ExitCode,
		}
	}
	return ErrorDetail{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		ExitCode: avatarerr.ExitGeneral,
	}
}

// rootCause returns the first cause in the chain that is not itself an
// AvatarError. Wrapped AvatarErrors already carry their text in Message.
func rootCause(ae *avatarerr.AvatarError) error {
	cause := ae.Cause
	for cause != nil {
		var next *avatarerr.AvatarError
		if !errors.As(cause, &next) {
			return cause
		}
		cause = next.Cause
	}
	return nil
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	detail := NewErrorDetail(err)
	if format == FormatJSON {
		return writeJSON(w, ErrorOutput{Error: detail})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", detail.Message)

	if len(detail.Details) > 0 {
		keys := make([]string, 0, len(detail.Details))
		for k := range detail.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, detail.Details[k])
		}
	}

	if detail.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", detail.Suggestion)
	}

	_, writeErr := io.WriteString(w, sb.String())
	return writeErr
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
