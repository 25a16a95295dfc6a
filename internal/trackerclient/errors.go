package trackerclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spec-kit/ticket-triage/internal/triage"
)

// APIError is the server's error envelope plus the HTTP status.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, msg)
}

func statusError(op string, resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return triage.NewError(kindForStatus(resp.StatusCode), op, apiErr.Message, apiErr)
}

func kindForStatus(status int) triage.Kind {
	switch status {
	case http.StatusNotFound:
		return triage.KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return triage.KindAuth
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return triage.KindValidation
	default:
		return triage.KindNetwork
	}
}
