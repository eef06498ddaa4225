// Package coretest provides a probe actor for testing actors that talk to
// each other through the core runtime.
package coretest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/najoast/sngo-iot/core"
)

// DefaultTimeout is how long Expect waits when no timeout is given.
const DefaultTimeout = 3 * time.Second

// Probe is an actor that records everything it receives and can send and
// watch on behalf of a test.
type Probe struct {
	t        testing.TB
	system   core.ActorSystem
	id       core.ActorID
	messages chan *core.Message
	last     *core.Message
}

type outbound struct {
	to   core.ActorID
	body any
}

type watchRequest struct {
	target core.ActorID
}

type probeHandler struct {
	messages chan *core.Message
}

func (h *probeHandler) HandleMessage(ctx core.Context, msg *core.Message) error {
	switch body := msg.Body.(type) {
	case outbound:
		if err := ctx.Tell(body.to, body.body); err != nil {
			return err
		}
		return ctx.Reply(struct{}{})
	case watchRequest:
		if err := ctx.Watch(body.target); err != nil {
			return err
		}
		return ctx.Reply(struct{}{})
	default:
		h.messages <- msg
		return nil
	}
}

// New spawns a probe in system.
func New(t testing.TB, system core.ActorSystem) *Probe {
	t.Helper()

	messages := make(chan *core.Message, 1024)
	a, err := system.NewActor(&probeHandler{messages: messages}, core.ActorOptions{
		MailboxSize: 1024,
		Name:        "probe",
	})
	require.NoError(t, err)

	return &Probe{t: t, system: system, id: a.ID(), messages: messages}
}

// ID returns the probe's actor ID.
func (p *Probe) ID() core.ActorID {
	return p.id
}

// Send delivers body to another actor with the probe as sender. It returns
// once body is in the target's mailbox.
func (p *Probe) Send(to core.ActorID, body any) {
	p.t.Helper()
	_, err := p.system.Call(context.Background(), p.id, outbound{to: to, body: body})
	require.NoError(p.t, err)
}

// Watch subscribes the probe to target's termination. It returns once the
// subscription is in place.
func (p *Probe) Watch(target core.ActorID) {
	p.t.Helper()
	_, err := p.system.Call(context.Background(), p.id, watchRequest{target: target})
	require.NoError(p.t, err)
}

// ExpectMsg waits for the next message.
func (p *Probe) ExpectMsg(timeout time.Duration) *core.Message {
	p.t.Helper()

	select {
	case msg := <-p.messages:
		p.last = msg
		return msg
	case <-time.After(timeout):
		require.FailNow(p.t, fmt.Sprintf("timeout (%s) waiting for message", timeout))
		return nil
	}
}

// ExpectNoMsg asserts nothing arrives within d.
func (p *Probe) ExpectNoMsg(d time.Duration) {
	p.t.Helper()

	select {
	case msg := <-p.messages:
		require.FailNow(p.t, fmt.Sprintf("unexpected message %T: %+v", msg.Body, msg.Body))
	case <-time.After(d):
	}
}

// LastSender returns the source of the last message taken by an Expect call.
func (p *Probe) LastSender() core.ActorID {
	p.t.Helper()
	require.NotNil(p.t, p.last, "no message received yet")
	return p.last.Source
}

// Expect waits for the next message and requires its body to be a T.
func Expect[T any](p *Probe, timeout time.Duration) T {
	p.t.Helper()

	msg := p.ExpectMsg(timeout)
	body, ok := msg.Body.(T)
	require.Truef(p.t, ok, "expected %T, got %T: %+v", *new(T), msg.Body, msg.Body)
	return body
}
