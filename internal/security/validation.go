// Package security masks credentials in logs and errors, and validates
// user-supplied identifiers before they reach storage.
package security

import (
	"strings"
	"unicode"

	apperrors "market-dashboard/internal/errors"
)

const (
	maxSymbolLen       = 15
	maxWatchlistName   = 50
	maxUserIDLen       = 128
	watchlistNameChars = "_- "
)

// ValidateSymbol normalizes a ticker and checks it is plausible: letters,
// digits, '.' and '-' only, starting with a letter or digit.
func ValidateSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if symbol == "" {
		return "", apperrors.NewValidationError("symbol", symbol, "stock symbol is required")
	}
	if len(symbol) > maxSymbolLen {
		return "", apperrors.NewValidationError("symbol", symbol, "symbol too long")
	}
	for i, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case (r == '.' || r == '-') && i > 0:
		default:
			return "", apperrors.NewValidationError("symbol", symbol, "invalid symbol format")
		}
	}
	return symbol, nil
}

// ValidateWatchlistName checks a watchlist name: letters, digits, spaces,
// '_' and '-', at most 50 characters.
func ValidateWatchlistName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return apperrors.NewValidationError("list", name, "watchlist name cannot be empty")
	}
	if len(name) > maxWatchlistName {
		return apperrors.NewValidationError("list", name, "watchlist name too long (max 50 characters)")
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune(watchlistNameChars, r) {
			return apperrors.NewValidationError("list", name, "watchlist name contains invalid characters")
		}
	}
	return nil
}

// ValidateUserID checks an external user id from the auth layer.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.ErrNotAuthenticated
	}
	if len(id) > maxUserIDLen || strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return apperrors.NewValidationError("user", MaskCredential(id), "malformed user id")
	}
	return nil
}

// MaskCredential masks a credential, keeping a few edge characters of long
// values so keys stay recognisable.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
