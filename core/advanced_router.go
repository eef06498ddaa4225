package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AdvancedRouter extends the basic Router with Handle support and named services.
type AdvancedRouter interface {
	Router

	// NextID generates the next available Actor ID
	NextID() ActorID

	// RouteByName routes a message using name-based addressing
	RouteByName(target string, msg *Message) error

	// RegisterService registers a service with a name
	RegisterService(actor Actor, name string) (*Handle, error)

	// UnregisterService unregisters a service by name
	UnregisterService(name string) error

	// LookupService finds a service by name
	LookupService(name string) (*Handle, bool)

	// GetHandleManager returns the underlying handle manager
	GetHandleManager() *HandleManager
}

// advancedRouter implements the AdvancedRouter interface.
type advancedRouter struct {
	*router // Embed basic router

	handleManager *HandleManager

	// Serializes name checks with registration.
	mu sync.Mutex
}

// NewAdvancedRouter creates a new AdvancedRouter.
func NewAdvancedRouter() AdvancedRouter {
	return &advancedRouter{
		router:        NewRouter().(*router),
		handleManager: NewHandleManager(),
	}
}

// Register adds an Actor to the routing table and allocates a handle.
func (ar *advancedRouter) Register(actor Actor) error {
	// Register with basic router first
	if err := ar.router.Register(actor); err != nil {
		return err
	}

	// Allocate a handle
	_, err := ar.handleManager.AllocateHandle(actor.ID(), "")
	return err
}

// RegisterService registers a service with a name.
func (ar *advancedRouter) RegisterService(actor Actor, name string) (*Handle, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.handleManager.HasName(name) {
		return nil, fmt.Errorf("service name '%s' already exists", name)
	}

	if err := ar.router.Register(actor); err != nil {
		return nil, err
	}

	// Allocate a named handle
	handle, err := ar.handleManager.AllocateHandle(actor.ID(), name)
	if err != nil {
		ar.router.Unregister(actor.ID())
		return nil, err
	}
	return handle, nil
}

// Unregister removes an Actor from the routing table.
func (ar *advancedRouter) Unregister(id ActorID) error {
	// Get handle before unregistering
	if handle, exists := ar.handleManager.GetHandleByActor(id); exists {
		ar.handleManager.ReleaseHandle(handle.ID)
	}

	return ar.router.Unregister(id)
}

// UnregisterService unregisters a service by name.
func (ar *advancedRouter) UnregisterService(name string) error {
	handle, exists := ar.handleManager.GetHandleByName(name)
	if !exists {
		return fmt.Errorf("service '%s': %w", name, ErrServiceNotFound)
	}

	// Unregister the actor
	if err := ar.router.Unregister(handle.ActorID); err != nil {
		return err
	}

	// Release the handle
	return ar.handleManager.ReleaseHandle(handle.ID)
}

// RouteByName routes a message using name-based addressing.
func (ar *advancedRouter) RouteByName(target string, msg *Message) error {
	targetHandle, exists := ar.handleManager.GetHandleByName(target)
	if !exists {
		return fmt.Errorf("target service '%s': %w", target, ErrServiceNotFound)
	}

	// Set target and route
	msg.Target = targetHandle.ActorID
	return ar.router.Route(msg)
}

// LookupService finds a service by name.
func (ar *advancedRouter) LookupService(name string) (*Handle, bool) {
	return ar.handleManager.GetHandleByName(name)
}

// GetHandleManager returns the underlying handle manager.
func (ar *advancedRouter) GetHandleManager() *HandleManager {
	return ar.handleManager
}

// MessageSession is an external caller waiting for a reply.
type MessageSession struct {
	ID        uint32
	Source    ActorID
	Target    ActorID
	CreatedAt time.Time
	Timeout   time.Duration
	Response  chan *Message
}

// SessionManager manages ongoing message sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uint32]*MessageSession
	counter  uint32
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[uint32]*MessageSession),
	}
}

// CreateSession creates a new message session.
func (sm *SessionManager) CreateSession(source, target ActorID, timeout time.Duration) (*MessageSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Session 0 means "no session" on the wire.
	sm.counter++
	if sm.counter == 0 {
		sm.counter++
	}
	sessionID := sm.counter

	session := &MessageSession{
		ID:        sessionID,
		Source:    source,
		Target:    target,
		CreatedAt: time.Now(),
		Timeout:   timeout,
		Response:  make(chan *Message, 1),
	}

	sm.sessions[sessionID] = session
	return session, nil
}

// GetSession retrieves a session by ID.
func (sm *SessionManager) GetSession(sessionID uint32) (*MessageSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// CompleteSession completes a session with a response. Only the first
// response is kept.
func (sm *SessionManager) CompleteSession(sessionID uint32, response *Message) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return fmt.Errorf("session %d: %w", sessionID, ErrSessionNotFound)
	}

	select {
	case session.Response <- response:
		delete(sm.sessions, sessionID)
		return nil
	default:
		// Channel is full or closed
		delete(sm.sessions, sessionID)
		return fmt.Errorf("session %d response channel is full", sessionID)
	}
}

// CleanupSession removes a session without sending a response.
func (sm *SessionManager) CleanupSession(sessionID uint32) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[sessionID]; exists {
		close(session.Response)
		delete(sm.sessions, sessionID)
	}
}

// Len returns the number of sessions still waiting for a reply.
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// WaitForResponse waits for a session response with timeout.
func (session *MessageSession) WaitForResponse(ctx context.Context) (*Message, error) {
	var timeout <-chan time.Time
	if session.Timeout > 0 {
		timer := time.NewTimer(session.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case response, ok := <-session.Response:
		if !ok || response == nil {
			return nil, fmt.Errorf("session %d: %w", session.ID, ErrSessionClosed)
		}
		return response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, fmt.Errorf("session %d timeout", session.ID)
	}
}
