package engagement

import "errors"

// ErrInvalidEvent is returned for a view or feedback that fails validation.
var ErrInvalidEvent = errors.New("invalid engagement event")
