package expression

import "errors"

// ErrInvalidGeometry is returned when the mouth has zero width or height, or a
// landmark coordinate is not finite. The cycle should be skipped.
var ErrInvalidGeometry = errors.New("invalid mouth geometry")
