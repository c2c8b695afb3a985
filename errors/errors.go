package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	// ErrAuthFailed covers every handshake rejection. Malformed and expired
	// credentials are deliberately indistinguishable at this level.
	ErrAuthFailed = fmt.Errorf("authentication failed")
	// ErrPersistNotification is the only fatal delivery failure: the durable
	// store did not record the notification.
	ErrPersistNotification  = fmt.Errorf("notification could not be persisted")
	ErrUnknownMessage       = fmt.Errorf("unknown message type")
	ErrInvalidMessage       = fmt.Errorf("invalid message payload")
	ErrNotificationNotFound = fmt.Errorf("notification not found")
)
