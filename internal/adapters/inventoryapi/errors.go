package inventoryapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/target/inventory-console/internal/errors"
)

const maxErrorBody = 64 << 10

// APIError is returned for every non-2xx backend response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("inventory api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("inventory api: %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// IsUnauthorized reports whether err is a backend 401.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// AsAppError converts an *APIError into the application error taxonomy.
// Errors that are not *APIError pass through unchanged.
func AsAppError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	var code apperrors.ErrorCode
	switch s := apiErr.StatusCode; {
	case s == http.StatusBadRequest, s == http.StatusUnprocessableEntity:
		code = apperrors.ErrCodeValidation
	case s == http.StatusUnauthorized:
		code = apperrors.ErrCodeUnauthorized
	case s == http.StatusForbidden:
		code = apperrors.ErrCodeForbidden
	case s == http.StatusNotFound:
		code = apperrors.ErrCodeNotFound
	case s == http.StatusConflict:
		code = apperrors.ErrCodeConflict
	case s == http.StatusRequestTimeout, s == http.StatusGatewayTimeout:
		code = apperrors.ErrCodeTimeout
	case s >= http.StatusInternalServerError:
		code = apperrors.ErrCodeUnavailable
	default:
		code = apperrors.ErrCodeInternal
	}

	msg := apiErr.Message
	if msg == "" {
		msg = strings.ToLower(http.StatusText(apiErr.StatusCode))
	}
	return apperrors.Wrap(apiErr, code, msg)
}

// errorBody covers the shapes the backend uses for failures.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Title   string `json:"title"`
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if resp.Body == nil {
		return apiErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code = body.Code
		for _, m := range []string{body.Message, body.Error, body.Title} {
			if m = strings.TrimSpace(m); m != "" {
				apiErr.Message = m
				return apiErr
			}
		}
		return apiErr
	}

	if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "<") {
		apiErr.Message = text
	}
	return apiErr
}
