package core

import (
	"context"
	"time"
)

// MessageHandler processes incoming messages for an Actor.
type MessageHandler interface {
	// HandleMessage processes a single message.
	// It should return an error if processing fails.
	HandleMessage(ctx Context, msg *Message) error
}

// PreStarter is implemented by handlers that need to run code on the actor
// goroutine before the first message is processed. A returned error stops
// the actor and is reported to its watchers.
type PreStarter interface {
	PreStart(ctx Context) error
}

// PostStopper is implemented by handlers that release resources once the
// actor has processed its last message.
type PostStopper interface {
	PostStop(ctx Context)
}

// Context is what a handler sees of the runtime while it processes a message.
type Context interface {
	context.Context

	// Self returns the ID of the running actor.
	Self() ActorID

	// Sender returns the source of the current message, NoActor for
	// external senders and timers.
	Sender() ActorID

	// ReplyTo returns the reply address of the current message.
	ReplyTo() Address

	// Reply answers the current message.
	Reply(body any) error

	// Respond sends body to a previously captured reply address.
	Respond(to Address, body any) error

	// Tell sends body to another actor with Self as the source.
	Tell(to ActorID, body any) error

	// Forward routes body to another actor keeping the current reply
	// address, so the receiver answers the original requester.
	Forward(to ActorID, body any) error

	// Spawn starts a new actor.
	Spawn(handler MessageHandler, opts ActorOptions) (ActorID, error)

	// Watch subscribes Self to the termination of target.
	Watch(target ActorID) error

	// Unwatch drops a subscription made with Watch.
	Unwatch(target ActorID)

	// ScheduleOnce delivers body to Self after d.
	ScheduleOnce(d time.Duration, body any) Cancellable

	// Stop stops Self once the current message has been handled.
	Stop()
}

// Cancellable is a pending scheduled delivery.
type Cancellable interface {
	// Cancel prevents the delivery if it has not happened yet and reports
	// whether it did so.
	Cancel() bool
}

// Actor represents a computational unit that processes messages sequentially.
// Each Actor runs in its own goroutine and communicates through channels.
type Actor interface {
	// ID returns the unique identifier of this Actor.
	ID() ActorID

	// Start begins the Actor's message processing loop.
	// It should be called only once per Actor instance.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the Actor and waits for its loop to exit.
	// It must not be called from the actor's own handler; use Context.Stop.
	Stop() error

	// Send sends a message to this Actor's mailbox.
	// It returns an error if the Actor is stopped or mailbox is full.
	Send(msg *Message) error

	// Done is closed once the Actor has terminated.
	Done() <-chan struct{}

	// Stats returns current runtime statistics for this Actor.
	Stats() ActorStats
}

// Router manages message routing between Actors.
type Router interface {
	// Register adds an Actor to the routing table.
	Register(actor Actor) error

	// Unregister removes an Actor from the routing table.
	Unregister(id ActorID) error

	// Route sends a message to the target Actor.
	Route(msg *Message) error

	// Lookup finds an Actor by its ID.
	Lookup(id ActorID) (Actor, bool)

	// List returns all registered Actor IDs.
	List() []ActorID
}

// ActorSystem manages the lifecycle of all Actors in the system.
type ActorSystem interface {
	// NewActor creates, registers and starts a new Actor.
	NewActor(handler MessageHandler, opts ActorOptions) (Actor, error)

	// NewService creates and registers a named service.
	NewService(name string, handler MessageHandler, opts ActorOptions) (*Handle, error)

	// GetActor retrieves an Actor by its ID.
	GetActor(id ActorID) (Actor, bool)

	// GetService retrieves a service by name.
	GetService(name string) (*Handle, bool)

	// Send delivers body to an actor from outside the system.
	Send(to ActorID, body any) error

	// SendByName delivers body to a named service from outside the system.
	SendByName(to string, body any) error

	// Call sends body and waits for the reply body.
	Call(ctx context.Context, to ActorID, body any) (any, error)

	// CallByName makes a Call using a service name.
	CallByName(ctx context.Context, to string, body any) (any, error)

	// CallTimeout is how long Call waits for a reply.
	CallTimeout() time.Duration

	// Stop stops a single actor and waits for it to terminate.
	Stop(id ActorID) error

	// Shutdown gracefully stops all Actors in the system.
	Shutdown(ctx context.Context) error

	// Stats returns statistics for all Actors.
	Stats() []ActorStats

	// ListServices returns all registered services.
	ListServices() []*Handle
}
