package scoring

import "errors"

// ErrInvalidInput is returned when a value model is built outside its domain.
var ErrInvalidInput = errors.New("invalid input")
