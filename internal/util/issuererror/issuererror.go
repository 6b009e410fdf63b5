// Package issuererror digs structured error details out of token issuer
// responses. Issuers disagree on layout: OAuth-style bodies carry
// error/error_description at the root, platform APIs nest code/message under
// an error object or list per-field problems under details.
package issuererror

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractErrorCodeAndMessage extracts an error code and human-readable message
// from common issuer error body layouts. Non-JSON bodies yield an empty code
// and a truncated preview as the message.
func ExtractErrorCodeAndMessage(body []byte) (string, string) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", ""
	}
	if !gjson.Valid(trimmed) {
		return "", truncateMessage(trimmed, 256)
	}

	root := gjson.Parse(trimmed)

	code := firstString(
		root.Get("error.code"),
		root.Get("code"),
	)
	if code == "" {
		// OAuth layout: "error" is the code itself when it is a plain string.
		if errField := root.Get("error"); errField.Type == gjson.String {
			code = errField.String()
		}
	}

	message := firstString(
		root.Get("error_description"),
		root.Get("error.message"),
		root.Get("message"),
		root.Get("error.detail"),
		root.Get("detail"),
		root.Get("details.0.message"),
	)

	return strings.TrimSpace(code), truncateMessage(strings.TrimSpace(message), 512)
}

// TruncateBody truncates body text for logging and inspection.
func TruncateBody(body []byte, max int) string {
	if max <= 0 {
		max = 512
	}
	raw := strings.TrimSpace(string(body))
	if len(raw) <= max {
		return raw
	}
	return raw[:max] + "...(truncated)"
}

func truncateMessage(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

func firstString(results ...gjson.Result) string {
	for _, r := range results {
		if r.Type == gjson.String && strings.TrimSpace(r.String()) != "" {
			return r.String()
		}
	}
	return ""
}
