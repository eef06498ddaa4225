package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/najoast/sngo-iot/logger"
)

// actor implements the Actor interface.
type actor struct {
	id      ActorID
	name    string
	handler MessageHandler
	system  *system

	// Channel for receiving messages
	mailbox chan *Message

	// Runtime notices (Terminated) bypass the mailbox bound and are
	// handled before queued mailbox messages.
	sysMu     sync.Mutex
	sysQueue  []*Message
	sysSignal chan struct{}

	// Context for controlling the Actor lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for graceful shutdown
	wg   sync.WaitGroup
	done chan struct{}

	// Atomic counters for statistics
	started           int32
	state             int32 // ActorState
	messagesProcessed uint64
	createdAt         time.Time
	lastMessageAt     int64 // Unix timestamp

	// Set by Context.Stop; only touched on the actor goroutine.
	stopRequested bool

	onTerminate func(id ActorID, reason error)
	log         *logger.Logger

	// Actor options
	opts ActorOptions
}

// NewActor creates a new Actor instance that is not attached to a system.
// Context operations that need the runtime (Reply, Tell, Spawn, ...) fail
// for such actors; it is mostly useful for tests of the mailbox loop.
func NewActor(id ActorID, handler MessageHandler, opts ActorOptions) Actor {
	return newActor(id, handler, opts, nil)
}

func newActor(id ActorID, handler MessageHandler, opts ActorOptions, sys *system) *actor {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultActorOptions().MailboxSize
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = DefaultActorOptions().ProcessTimeout
	}

	a := &actor{
		id:        id,
		name:      opts.Name,
		handler:   handler,
		system:    sys,
		mailbox:   make(chan *Message, opts.MailboxSize),
		sysSignal: make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		createdAt: time.Now(),
		log:       logger.Nop(),
		opts:      opts,
	}
	if sys != nil {
		a.log = sys.log
		a.onTerminate = sys.actorTerminated
	}

	// Set initial state
	atomic.StoreInt32(&a.state, int32(ActorStateIdle))

	return a
}

// ID returns the unique identifier of this Actor.
func (a *actor) ID() ActorID {
	return a.id
}

// Start begins the Actor's message processing loop.
func (a *actor) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&a.started, 0, 1) {
		return fmt.Errorf("actor %d is already started (state: %s)", a.id, ActorState(atomic.LoadInt32(&a.state)))
	}

	a.wg.Add(1)
	go a.messageLoop()

	return nil
}

// Stop gracefully shuts down the Actor.
func (a *actor) Stop() error {
	for {
		current := ActorState(atomic.LoadInt32(&a.state))
		if current == ActorStateStopping || current == ActorStateStopped {
			return fmt.Errorf("actor %d cannot be stopped from state %s: %w", a.id, current, ErrActorNotRunning)
		}
		if atomic.CompareAndSwapInt32(&a.state, int32(current), int32(ActorStateStopping)) {
			break
		}
	}

	// Cancel context to signal shutdown
	a.cancel()

	// An actor that was never started has no loop to wait for.
	if atomic.CompareAndSwapInt32(&a.started, 0, 1) {
		a.terminate(nil)
		return nil
	}

	a.wg.Wait()
	return nil
}

// Send sends a message to this Actor's mailbox.
func (a *actor) Send(msg *Message) error {
	currentState := ActorState(atomic.LoadInt32(&a.state))
	if currentState == ActorStateStopped || currentState == ActorStateStopping {
		return fmt.Errorf("actor %d (state: %s): %w", a.id, currentState, ErrActorNotRunning)
	}

	select {
	case a.mailbox <- msg:
		return nil
	case <-a.ctx.Done():
		return fmt.Errorf("actor %d is shutting down: %w", a.id, ErrActorNotRunning)
	default:
		return fmt.Errorf("actor %d: %w", a.id, ErrMailboxFull)
	}
}

// sendSystem queues a runtime notice. It never fails for a live actor.
func (a *actor) sendSystem(msg *Message) error {
	a.sysMu.Lock()
	currentState := ActorState(atomic.LoadInt32(&a.state))
	if currentState == ActorStateStopped || currentState == ActorStateStopping {
		a.sysMu.Unlock()
		return fmt.Errorf("actor %d (state: %s): %w", a.id, currentState, ErrActorNotRunning)
	}
	a.sysQueue = append(a.sysQueue, msg)
	a.sysMu.Unlock()

	select {
	case a.sysSignal <- struct{}{}:
	default:
	}
	return nil
}

func (a *actor) nextSystem() *Message {
	a.sysMu.Lock()
	defer a.sysMu.Unlock()

	if len(a.sysQueue) == 0 {
		return nil
	}
	msg := a.sysQueue[0]
	a.sysQueue[0] = nil
	a.sysQueue = a.sysQueue[1:]
	return msg
}

// Done is closed once the Actor has terminated.
func (a *actor) Done() <-chan struct{} {
	return a.done
}

// Stats returns current runtime statistics for this Actor.
func (a *actor) Stats() ActorStats {
	lastMsg := atomic.LoadInt64(&a.lastMessageAt)
	var lastMessageAt time.Time
	if lastMsg > 0 {
		lastMessageAt = time.Unix(lastMsg, 0)
	}

	return ActorStats{
		ID:                a.id,
		Name:              a.name,
		State:             ActorState(atomic.LoadInt32(&a.state)),
		MessagesProcessed: atomic.LoadUint64(&a.messagesProcessed),
		MailboxSize:       len(a.mailbox),
		CreatedAt:         a.createdAt,
		LastMessageAt:     lastMessageAt,
	}
}

// messageLoop is the main processing loop for the Actor.
func (a *actor) messageLoop() {
	defer a.wg.Done()

	var reason error
	defer func() { a.terminate(reason) }()

	if reason = a.preStart(); reason != nil || a.stopRequested {
		return
	}

	for {
		// A stop request wins over queued messages.
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		if msg := a.nextSystem(); msg != nil {
			if reason = a.processMessage(msg); reason != nil || a.stopRequested {
				return
			}
			continue
		}

		select {
		case <-a.sysSignal:
		case msg := <-a.mailbox:
			if msg == nil {
				continue
			}
			if reason = a.processMessage(msg); reason != nil {
				return
			}
			if a.stopRequested {
				return
			}

		case <-a.ctx.Done():
			return
		}
	}
}

// processMessage handles a single message. A panic in the handler is turned
// into the actor's failure reason.
func (a *actor) processMessage(msg *Message) (failure error) {
	if atomic.CompareAndSwapInt32(&a.state, int32(ActorStateIdle), int32(ActorStateRunning)) {
		defer atomic.CompareAndSwapInt32(&a.state, int32(ActorStateRunning), int32(ActorStateIdle))
	}

	// Update statistics
	atomic.AddUint64(&a.messagesProcessed, 1)
	atomic.StoreInt64(&a.lastMessageAt, time.Now().Unix())

	// Create context with timeout
	ctx, cancel := context.WithTimeout(a.ctx, a.opts.ProcessTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("actor %d panicked handling %T: %v", a.id, msg.Body, r)
			a.failCall(msg, failure)
		}
	}()

	if err := a.handler.HandleMessage(a.newContext(ctx, msg), msg); err != nil {
		a.log.Warn("message handling failed",
			"actor", a.id,
			"name", a.name,
			"message", fmt.Sprintf("%T", msg.Body),
			"error", err)
		a.failCall(msg, err)
	}

	return nil
}

// failCall answers an external caller waiting on msg with err.
func (a *actor) failCall(msg *Message, err error) {
	if a.system == nil || msg.Source != NoActor || msg.Session == 0 {
		return
	}
	_ = a.system.sessions.CompleteSession(msg.Session, &Message{
		Source:    a.id,
		Session:   msg.Session,
		Body:      err,
		Timestamp: time.Now(),
	})
}

func (a *actor) preStart() (err error) {
	starter, ok := a.handler.(PreStarter)
	if !ok {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actor %d panicked in PreStart: %v", a.id, r)
		}
	}()

	return starter.PreStart(a.newContext(a.ctx, nil))
}

func (a *actor) postStop() {
	stopper, ok := a.handler.(PostStopper)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("PostStop panicked", "actor", a.id, "name", a.name, "panic", r)
		}
	}()

	stopper.PostStop(a.newContext(context.Background(), nil))
}

// terminate runs once, on the actor goroutine when it has one, after the last
// message has been processed.
func (a *actor) terminate(reason error) {
	a.sysMu.Lock()
	atomic.StoreInt32(&a.state, int32(ActorStateStopping))
	a.sysQueue = nil
	a.sysMu.Unlock()
	a.cancel()
	a.drainMailbox()
	a.postStop()
	atomic.StoreInt32(&a.state, int32(ActorStateStopped))

	if a.onTerminate != nil {
		a.onTerminate(a.id, reason)
	}
	close(a.done)
}

// drainMailbox discards remaining messages during shutdown.
func (a *actor) drainMailbox() {
	for {
		select {
		case msg := <-a.mailbox:
			if msg == nil {
				return
			}
			// Send error response for any pending calls
			a.failCall(msg, fmt.Errorf("actor %d is shutting down: %w", a.id, ErrActorNotRunning))
		default:
			return
		}
	}
}
