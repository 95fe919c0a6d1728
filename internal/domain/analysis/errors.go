package analysis

import "errors"

var (
	// ErrMissingFields is returned when upload_id, callback_url or block_ids is absent.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidCallbackURL is returned for callback urls that are not http(s).
	ErrInvalidCallbackURL = errors.New("invalid callback_url")
	// ErrJobNotFound is returned by repositories for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrResultNotFound is returned when no artifact exists for a file name.
	ErrResultNotFound = errors.New("file not found")
)
