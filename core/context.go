package core

import (
	"context"
	"fmt"
	"time"
)

// actorContext is the Context handed to a handler for one message, or for
// its PreStart/PostStop hooks when msg is nil.
type actorContext struct {
	context.Context
	actor *actor
	msg   *Message
}

func (a *actor) newContext(ctx context.Context, msg *Message) *actorContext {
	return &actorContext{Context: ctx, actor: a, msg: msg}
}

func (c *actorContext) Self() ActorID {
	return c.actor.id
}

func (c *actorContext) Sender() ActorID {
	if c.msg == nil {
		return NoActor
	}
	return c.msg.Source
}

func (c *actorContext) ReplyTo() Address {
	if c.msg == nil {
		return Address{}
	}
	return c.msg.ReplyTo()
}

func (c *actorContext) Reply(body any) error {
	return c.Respond(c.ReplyTo(), body)
}

func (c *actorContext) Respond(to Address, body any) error {
	sys, err := c.runtime()
	if err != nil {
		return err
	}
	return sys.respond(to, c.actor.id, body)
}

func (c *actorContext) Tell(to ActorID, body any) error {
	sys, err := c.runtime()
	if err != nil {
		return err
	}
	return sys.deliver(&Message{Source: c.actor.id, Target: to, Body: body})
}

func (c *actorContext) Forward(to ActorID, body any) error {
	sys, err := c.runtime()
	if err != nil {
		return err
	}
	reply := c.ReplyTo()
	return sys.deliver(&Message{Source: reply.Actor, Session: reply.Session, Target: to, Body: body})
}

func (c *actorContext) Spawn(handler MessageHandler, opts ActorOptions) (ActorID, error) {
	sys, err := c.runtime()
	if err != nil {
		return NoActor, err
	}
	child, err := sys.NewActor(handler, opts)
	if err != nil {
		return NoActor, err
	}
	return child.ID(), nil
}

func (c *actorContext) Watch(target ActorID) error {
	sys, err := c.runtime()
	if err != nil {
		return err
	}
	return sys.watch(c.actor.id, target)
}

func (c *actorContext) Unwatch(target ActorID) {
	if sys, err := c.runtime(); err == nil {
		sys.unwatch(c.actor.id, target)
	}
}

func (c *actorContext) ScheduleOnce(d time.Duration, body any) Cancellable {
	sys, err := c.runtime()
	if err != nil {
		return stoppedTimer{}
	}
	return sys.scheduleOnce(c.actor.id, d, body)
}

func (c *actorContext) Stop() {
	c.actor.stopRequested = true
}

func (c *actorContext) runtime() (*system, error) {
	if c.actor.system == nil {
		return nil, fmt.Errorf("actor %d is not attached to an actor system", c.actor.id)
	}
	return c.actor.system, nil
}
