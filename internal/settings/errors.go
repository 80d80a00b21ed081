package settings

import "errors"

// Sentinel errors for the settings layer.
var (
	ErrNotFound     = errors.New("setting not found")
	ErrInvalidValue = errors.New("invalid setting value")
)
