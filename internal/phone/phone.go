// Package phone validates and normalizes the numbers handed to the dialer.
package phone

import (
	"fmt"
	"strings"

	apperrors "github.com/acme/direct-calling/pkg/errors"
)

// Clean keeps only the characters a tel: URL can carry (digits, '+' and '*').
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if isDigit(r) || r == '+' || r == '*' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate checks raw against the dialable character set and returns it without
// visual separators. Separators are space, '-', '.', '(' and ')'.
func Validate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: phone number cannot be empty", apperrors.ErrValidation)
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	digits := 0
	for _, r := range trimmed {
		switch {
		case isDigit(r):
			digits++
			b.WriteRune(r)
		case r == '+':
			if b.Len() > 0 {
				return "", fmt.Errorf("%w: '+' is only allowed as a prefix", apperrors.ErrValidation)
			}
			b.WriteRune(r)
		case r == '*' || r == '#':
			b.WriteRune(r)
		case isSeparator(r):
		default:
			return "", fmt.Errorf("%w: invalid character %q in phone number", apperrors.ErrValidation, r)
		}
	}

	if digits == 0 {
		return "", fmt.Errorf("%w: phone number has no digits", apperrors.ErrValidation)
	}
	return b.String(), nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '-', '.', '(', ')':
		return true
	}
	return false
}
