package briefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/sanitize"
)

// ValidateCommentText checks a comment body after sanitizing. Shared with
// the comments plugin so decision comments and regular comments follow the
// same limits.
func ValidateCommentText(content string) error {
	if content == "" {
		return apperror.NewFieldValidation(apperror.FieldError{Field: "comment", Message: "is required"})
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return apperror.NewFieldValidation(apperror.FieldError{
			Field:   "comment",
			Message: fmt.Sprintf("must be at most %d characters", MaxCommentLength),
		})
	}
	return nil
}

func cleanHeader(header string) (string, *apperror.FieldError) {
	header = sanitize.Text(header)
	if header == "" {
		return "", &apperror.FieldError{Field: "header", Message: "is required"}
	}
	if utf8.RuneCountInString(header) > MaxHeaderLength {
		return "", &apperror.FieldError{Field: "header", Message: fmt.Sprintf("must be at most %d characters", MaxHeaderLength)}
	}
	return header, nil
}

// cleanFooter returns the sanitized footer. An empty result means "no
// footer".
func cleanFooter(footer string) (string, *apperror.FieldError) {
	footer = strings.TrimSpace(sanitize.HTML(footer))
	if utf8.RuneCountInString(footer) > MaxFooterLength {
		return "", &apperror.FieldError{Field: "footer", Message: fmt.Sprintf("must be at most %d characters", MaxFooterLength)}
	}
	return footer, nil
}

func cleanContent(content json.RawMessage) (json.RawMessage, *apperror.FieldError) {
	if len(content) == 0 {
		return nil, &apperror.FieldError{Field: "content", Message: "is required"}
	}
	out, err := sanitize.ContentJSON(content)
	if errors.Is(err, sanitize.ErrNotObject) {
		return nil, &apperror.FieldError{Field: "content", Message: "must be a JSON object"}
	}
	if err != nil {
		return nil, &apperror.FieldError{Field: "content", Message: "is not valid JSON"}
	}
	return out, nil
}

// fieldErrors collects non-nil field errors into a validation error, or
// returns nil when there are none.
func fieldErrors(errs ...*apperror.FieldError) error {
	var fields []apperror.FieldError
	for _, e := range errs {
		if e != nil {
			fields = append(fields, *e)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return apperror.NewFieldValidation(fields...)
}

// internalOr passes application errors through and wraps anything else as
// an internal error.
func internalOr(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.NewInternal(err)
}
