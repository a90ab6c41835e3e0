package insight

import "errors"

var (
	ErrInsightUnavailable = errors.New("insight service unavailable")
	ErrInvalidResponse    = errors.New("invalid response from insight")
	ErrInvalidImage       = errors.New("invalid image for insight")
)
