package buttons

import "errors"

var (
	// ErrSyncAborted is returned when a plausibility check stops a
	// reconciliation cycle. The device is left untouched.
	ErrSyncAborted = errors.New("buttons: sync aborted")

	// ErrInvalidRecord marks an access list row that cannot be used.
	ErrInvalidRecord = errors.New("buttons: invalid access list record")
)
