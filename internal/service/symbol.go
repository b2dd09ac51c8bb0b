package service

import "regexp"

// Symbols are 4-6 ASCII digits. Anything else is rejected before any
// network call.
var symbolRe = regexp.MustCompile(`^[0-9]{4,6}$`)

func ValidateSymbol(symbol string) error {
	if !symbolRe.MatchString(symbol) {
		return ErrInvalidSymbol
	}
	return nil
}
