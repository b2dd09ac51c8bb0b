package service

import "errors"

var (
	ErrNotFound      = errors.New("error not found")
	ErrInvalidSymbol = errors.New("error invalid symbol format")
	ErrValidation    = errors.New("error validation failed")
	ErrSetupRequired = errors.New("error initial setup not completed")
)
