package conversation

import "errors"

var (
	// ErrNotFound is returned when a conv_id has no index entry.
	ErrNotFound = errors.New("conversation: not found")
	// ErrForbidden is returned when a caller requests a named conversation
	// it does not own. Anonymous conversations have no owner and are
	// readable by any caller.
	ErrForbidden = errors.New("conversation: forbidden")
)
