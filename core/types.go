package core

import (
	"fmt"
	"time"
)

// ActorID represents a unique identifier for an Actor.
type ActorID uint32

// NoActor is the source of messages sent from outside the actor system.
const NoActor ActorID = 0

// Address is where a reply goes: an actor, or an external caller waiting on
// a session when Actor is NoActor.
type Address struct {
	Actor   ActorID
	Session uint32
}

// String returns a string representation of the address.
func (a Address) String() string {
	if a.Actor == NoActor {
		return fmt.Sprintf("session:%d", a.Session)
	}
	return fmt.Sprintf("actor:%d", a.Actor)
}

// Message represents communication data between Actors.
type Message struct {
	// ID is a unique identifier for this message
	ID uint64

	// Source is the ID of the sending Actor
	Source ActorID

	// Target is the ID of the receiving Actor
	Target ActorID

	// Session is used for request-response correlation
	Session uint32

	// Body is one of the receiving actor's message variants
	Body any

	// Timestamp when the message was created
	Timestamp time.Time
}

// ReplyTo returns the address a response to this message should go to.
func (m *Message) ReplyTo() Address {
	return Address{Actor: m.Source, Session: m.Session}
}

// Terminated is delivered to every watcher of an actor once it has stopped.
// Reason is nil for a regular stop and carries the failure otherwise.
type Terminated struct {
	Actor  ActorID
	Reason error
}

// ActorState represents the current state of an Actor.
type ActorState uint8

const (
	// ActorStateIdle means the Actor is waiting for messages
	ActorStateIdle ActorState = iota

	// ActorStateRunning means the Actor is processing a message
	ActorStateRunning

	// ActorStateStopping means the Actor is shutting down
	ActorStateStopping

	// ActorStateStopped means the Actor has been stopped
	ActorStateStopped
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case ActorStateIdle:
		return "idle"
	case ActorStateRunning:
		return "running"
	case ActorStateStopping:
		return "stopping"
	case ActorStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ActorOptions contains configuration options for creating an Actor.
type ActorOptions struct {
	// MailboxSize sets the size of the Actor's message queue
	MailboxSize int

	// Name is a human-readable name for the Actor
	Name string

	// Timeout for message processing
	ProcessTimeout time.Duration
}

// DefaultActorOptions returns sensible default options.
func DefaultActorOptions() ActorOptions {
	return ActorOptions{
		MailboxSize:    1000,
		Name:           "",
		ProcessTimeout: 30 * time.Second,
	}
}

// ActorStats contains runtime statistics for an Actor.
type ActorStats struct {
	// ID of the Actor
	ID ActorID

	// Name of the Actor
	Name string

	// Current state
	State ActorState

	// Total messages processed
	MessagesProcessed uint64

	// Messages currently in mailbox
	MailboxSize int

	// Time when Actor was created
	CreatedAt time.Time

	// Last message processing time
	LastMessageAt time.Time
}
