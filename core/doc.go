// Package core implements the actor runtime the device registry runs on.
//
// Every actor is a goroutine draining a bounded mailbox. Actors address each
// other by ActorID, may register under a service name, watch each other for
// termination and schedule one-shot timer messages to themselves. External
// callers talk to actors through Send (fire and forget) or Call (ask with a
// session that any actor in a forwarding chain may complete).
package core
