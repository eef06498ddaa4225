package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/najoast/sngo-iot/logger"
)

// system implements the ActorSystem interface.
type system struct {
	router   AdvancedRouter
	sessions *SessionManager
	watches  *watchRegistry
	log      *logger.Logger
	mu       sync.RWMutex

	defaultOptions ActorOptions
	callTimeout    time.Duration
	messageCounter uint64

	// System shutdown context
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for all actors
	wg sync.WaitGroup
}

// Option configures an ActorSystem.
type Option func(*system)

// WithLogger sets the logger used by the system and its actors.
func WithLogger(l *logger.Logger) Option {
	return func(s *system) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDefaultActorOptions sets the options applied to actors spawned with a
// zero MailboxSize.
func WithDefaultActorOptions(opts ActorOptions) Option {
	return func(s *system) {
		s.defaultOptions = opts
	}
}

// WithCallTimeout bounds how long Call waits when the caller's context has
// no earlier deadline. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(s *system) {
		s.callTimeout = d
	}
}

// NewActorSystem creates a new ActorSystem instance.
func NewActorSystem(opts ...Option) ActorSystem {
	ctx, cancel := context.WithCancel(context.Background())

	s := &system{
		router:         NewAdvancedRouter(),
		sessions:       NewSessionManager(),
		watches:        newWatchRegistry(),
		log:            logger.Nop(),
		defaultOptions: DefaultActorOptions(),
		callTimeout:    30 * time.Second,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewActor creates and registers a new Actor.
func (s *system) NewActor(handler MessageHandler, opts ActorOptions) (Actor, error) {
	a, _, err := s.spawn(handler, opts, "")
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewService creates and registers a named service.
func (s *system) NewService(name string, handler MessageHandler, opts ActorOptions) (*Handle, error) {
	if name == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}
	_, handle, err := s.spawn(handler, opts, name)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (s *system) spawn(handler MessageHandler, opts ActorOptions, name string) (*actor, *Handle, error) {
	if handler == nil {
		return nil, nil, fmt.Errorf("cannot spawn actor with nil handler")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Check if system is shutting down
	select {
	case <-s.ctx.Done():
		return nil, nil, ErrSystemShutdown
	default:
	}

	// Generate unique ID
	id := s.router.NextID()

	// Apply default options if needed
	if opts.MailboxSize == 0 {
		defaults := s.defaultOptions
		defaults.Name = opts.Name
		opts = defaults
	}
	if opts.Name == "" {
		opts.Name = name
	}

	a := newActor(id, handler, opts, s)

	var handle *Handle
	var err error
	if name != "" {
		handle, err = s.router.RegisterService(a, name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to register service: %w", err)
		}
	} else if err = s.router.Register(a); err != nil {
		return nil, nil, fmt.Errorf("failed to register actor: %w", err)
	}

	s.wg.Add(1)
	if err := a.Start(s.ctx); err != nil {
		s.wg.Done()
		s.router.Unregister(id)
		return nil, nil, err
	}

	return a, handle, nil
}

// actorTerminated runs on the terminating actor's goroutine. The actor is
// unregistered before its watchers are told, so a watcher handling
// Terminated can no longer route to it.
func (s *system) actorTerminated(id ActorID, reason error) {
	defer s.wg.Done()

	s.router.Unregister(id)

	for _, watcher := range s.watches.terminated(id) {
		err := s.notify(watcher, id, reason)
		if err != nil {
			s.log.Debug("watcher gone before termination notice", "actor", id, "watcher", watcher, "error", err)
		}
	}

	if reason != nil {
		s.log.Error("actor failed", "actor", id, "error", reason)
	}
}

// GetActor retrieves an Actor by its ID.
func (s *system) GetActor(id ActorID) (Actor, bool) {
	return s.router.Lookup(id)
}

// GetService retrieves a service by name.
func (s *system) GetService(name string) (*Handle, bool) {
	return s.router.LookupService(name)
}

// Send delivers body to an actor from outside the system.
func (s *system) Send(to ActorID, body any) error {
	return s.deliver(&Message{Source: NoActor, Target: to, Body: body})
}

// SendByName delivers body to a named service from outside the system.
func (s *system) SendByName(to string, body any) error {
	handle, exists := s.router.LookupService(to)
	if !exists {
		return fmt.Errorf("target service '%s': %w", to, ErrServiceNotFound)
	}
	return s.Send(handle.ActorID, body)
}

// Call sends body and waits for the reply. A reply body that is an error
// is returned as a remote error.
func (s *system) Call(ctx context.Context, to ActorID, body any) (any, error) {
	session, err := s.sessions.CreateSession(NoActor, to, s.callTimeout)
	if err != nil {
		return nil, err
	}
	defer s.sessions.CleanupSession(session.ID)

	err = s.deliver(&Message{
		Source:  NoActor,
		Target:  to,
		Session: session.ID,
		Body:    body,
	})
	if err != nil {
		return nil, err
	}

	resp, err := session.WaitForResponse(ctx)
	if err != nil {
		return nil, err
	}

	if remoteErr, ok := resp.Body.(error); ok {
		return nil, fmt.Errorf("remote error: %w", remoteErr)
	}

	return resp.Body, nil
}

// CallByName makes a synchronous call using a service name.
func (s *system) CallByName(ctx context.Context, to string, body any) (any, error) {
	targetHandle, exists := s.router.LookupService(to)
	if !exists {
		return nil, fmt.Errorf("target service '%s': %w", to, ErrServiceNotFound)
	}

	return s.Call(ctx, targetHandle.ActorID, body)
}

func (s *system) CallTimeout() time.Duration {
	return s.callTimeout
}

// Stop stops a single actor and waits for it to terminate.
func (s *system) Stop(id ActorID) error {
	actor, exists := s.router.Lookup(id)
	if !exists {
		return fmt.Errorf("actor %d: %w", id, ErrActorNotFound)
	}
	return actor.Stop()
}

// Shutdown gracefully stops all Actors in the system.
func (s *system) Shutdown(ctx context.Context) error {
	// Signal shutdown; no actor can be spawned past this point.
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	var g errgroup.Group
	for _, id := range s.router.List() {
		actor, exists := s.router.Lookup(id)
		if !exists {
			continue
		}
		g.Go(func() error {
			if err := actor.Stop(); err != nil && !errors.Is(err, ErrActorNotRunning) {
				return err
			}
			return nil
		})
	}

	// Wait for all actors to finish with timeout
	done := make(chan error, 1)
	go func() {
		err := g.Wait()
		s.wg.Wait()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns statistics for all Actors.
func (s *system) Stats() []ActorStats {
	var stats []ActorStats

	actorIDs := s.router.List()
	for _, id := range actorIDs {
		if actor, exists := s.router.Lookup(id); exists {
			stats = append(stats, actor.Stats())
		}
	}

	return stats
}

// ListServices returns all registered services.
func (s *system) ListServices() []*Handle {
	return s.router.GetHandleManager().ListNamed()
}

// deliver stamps and routes an actor-to-actor message.
func (s *system) deliver(msg *Message) error {
	msg.ID = atomic.AddUint64(&s.messageCounter, 1)
	msg.Timestamp = time.Now()
	return s.router.Route(msg)
}

// respond sends a reply to an actor, or completes an external caller's
// session.
func (s *system) respond(to Address, from ActorID, body any) error {
	if to.Actor != NoActor {
		return s.deliver(&Message{Source: from, Target: to.Actor, Session: to.Session, Body: body})
	}

	if to.Session == 0 {
		s.log.Debug("dropped reply to external sender", "from", from, "message", typeName(body))
		return nil
	}

	return s.sessions.CompleteSession(to.Session, &Message{
		ID:        atomic.AddUint64(&s.messageCounter, 1),
		Source:    from,
		Session:   to.Session,
		Body:      body,
		Timestamp: time.Now(),
	})
}

func (s *system) watch(watcher, target ActorID) error {
	if watcher == target {
		return nil
	}

	alive := func(id ActorID) bool {
		_, exists := s.router.Lookup(id)
		return exists
	}
	if s.watches.add(watcher, target, alive) {
		return nil
	}

	// Already gone: notify right away.
	return s.notify(watcher, target, nil)
}

// notify queues Terminated on the watcher's system queue, which is not
// bounded by the mailbox size.
func (s *system) notify(watcher, target ActorID, reason error) error {
	a, exists := s.router.Lookup(watcher)
	if !exists {
		return fmt.Errorf("watcher %d: %w", watcher, ErrActorNotFound)
	}
	local, ok := a.(*actor)
	if !ok {
		return fmt.Errorf("watcher %d does not accept runtime notices", watcher)
	}
	return local.sendSystem(&Message{
		ID:        atomic.AddUint64(&s.messageCounter, 1),
		Source:    target,
		Target:    watcher,
		Body:      Terminated{Actor: target, Reason: reason},
		Timestamp: time.Now(),
	})
}

func (s *system) unwatch(watcher, target ActorID) {
	s.watches.remove(watcher, target)
}

func typeName(body any) string {
	return fmt.Sprintf("%T", body)
}
