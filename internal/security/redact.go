package security

import (
	"regexp"
	"strings"
)

// secretParams matches credentials carried in query strings, headers or
// key=value log text, e.g. Finnhub's token parameter.
var secretParams = regexp.MustCompile(`(?i)\b(token|api[_-]?key|apikey|api[_-]?secret|secret[_-]?key|access[_-]?token|password|apca-api-key-id|apca-api-secret-key)([=:]\s*)([^\s&"']+)`)

// Redact masks every credential value found in s.
func Redact(s string) string {
	if !strings.ContainsAny(s, "=:") {
		return s
	}
	return secretParams.ReplaceAllStringFunc(s, func(match string) string {
		m := secretParams.FindStringSubmatch(match)
		return m[1] + m[2] + MaskCredential(m[3])
	})
}

// RedactError returns err with credentials masked in its message. The
// original stays reachable through errors.Is and errors.As.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if red := Redact(msg); red != msg {
		return &redactedError{msg: red, err: err}
	}
	return err
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }
