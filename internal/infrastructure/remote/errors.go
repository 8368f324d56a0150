package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/billsight/billsight-client/internal/core/domain"
)

// errorEnvelope covers both error bodies the service emits: the framework
// default {"detail": ...} and its own {"success": false, "error": ...}.
type errorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
	Error  json.RawMessage `json:"error"`
}

func kindForStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.KindValidation
	case http.StatusUnauthorized:
		return domain.KindUnauthorized
	case http.StatusForbidden:
		return domain.KindForbidden
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusConflict:
		return domain.KindConflict
	default:
		return domain.KindServer
	}
}

// normalize turns a non-2xx response into an AuthError.
func normalize(status int, statusText string, body []byte) *domain.AuthError {
	detail := extractDetail(body)
	msg := detail
	if msg == "" {
		text := http.StatusText(status)
		if text == "" {
			text = strings.TrimSpace(strings.TrimPrefix(statusText, fmt.Sprint(status)))
		}
		msg = fmt.Sprintf("request failed with status %d (%s)", status, text)
	}
	return &domain.AuthError{
		Kind:    kindForStatus(status),
		Message: msg,
		Detail:  detail,
		Status:  status,
	}
}

func extractDetail(body []byte) string {
	var env errorEnvelope
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return ""
	}
	if s := rawMessage(env.Detail); s != "" {
		return s
	}
	return rawMessage(env.Error)
}

// rawMessage reads a detail field. Validation failures carry a list of
// {"loc", "msg"} objects instead of a string; their messages are joined.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
