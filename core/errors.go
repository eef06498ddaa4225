package core

import "errors"

var (
	ErrActorNotFound    = errors.New("actor not found")
	ErrActorNotRunning  = errors.New("actor is not running")
	ErrMailboxFull      = errors.New("actor mailbox is full")
	ErrSystemShutdown   = errors.New("actor system is shutting down")
	ErrServiceNotFound  = errors.New("service not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session was closed")
	ErrUnhandledMessage = errors.New("unhandled message")
)
