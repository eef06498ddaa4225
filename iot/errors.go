package iot

import "errors"

var (
	// ErrEmptyID is returned when a group or device id is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrUnexpectedReply is returned when the device manager answers with
	// the wrong message type.
	ErrUnexpectedReply = errors.New("unexpected reply")

	// ErrTimeoutTooLong is returned for a query timeout the caller would
	// give up on before the query reports.
	ErrTimeoutTooLong = errors.New("query timeout must be shorter than the call timeout")
)
