package store

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateID  = errors.New("duplicate id")
	ErrLastVariant  = errors.New("an experiment must keep at least one variant")
	ErrLastAccount  = errors.New("at least one account is required")
	ErrAccountInUse = errors.New("account is referenced by logs or prospects")
	ErrInvalidInput = errors.New("invalid input")
)
