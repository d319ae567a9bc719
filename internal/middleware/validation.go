package middleware

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxReasonLength is the maximum length for cancel and complete reasons.
const MaxReasonLength = 500

// Validation errors.
var (
	ErrTextInvalidUTF8  = errors.New("text is not valid UTF-8")
	ErrTextControlChars = errors.New("text contains control characters")
	ErrReasonTooLong    = errors.New("reason exceeds maximum length")
)

// RequireJSON rejects mutating requests whose declared content type is not
// JSON. Requests without a body (empty Content-Type) pass through since
// status-change endpoints accept an optional body.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := r.Header.Get("Content-Type")
			if ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnsupportedMediaType)
					_, _ = w.Write([]byte(`{"error":"Content-Type must be application/json","code":"UNSUPPORTED_MEDIA_TYPE"}`))
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateFreeText checks user-supplied text for encoding tricks. Line
// breaks are allowed, other control characters are not.
func ValidateFreeText(text string) error {
	if !utf8.ValidString(text) {
		return ErrTextInvalidUTF8
	}
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return ErrTextControlChars
		}
	}
	return nil
}

// ValidateReason checks the optional reason attached to a status change.
func ValidateReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if len(reason) > MaxReasonLength {
		return ErrReasonTooLong
	}
	return ValidateFreeText(reason)
}
