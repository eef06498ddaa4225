package core

import (
	"fmt"
	"sort"
	"sync"
)

// Handle is a stable, printable reference to an actor, optionally carrying
// the service name it was registered under.
type Handle struct {
	// ID is the numeric handle ID
	ID uint32

	// ActorID is the internal Actor ID
	ActorID ActorID

	// Name is the service name (optional)
	Name string
}

// String returns a string representation of the handle.
func (h Handle) String() string {
	if h.Name != "" {
		return fmt.Sprintf(":%08x(%s)", h.ID, h.Name)
	}
	return fmt.Sprintf(":%08x", h.ID)
}

// HandleManager manages the mapping between Handles and Actors.
type HandleManager struct {
	mu sync.RWMutex

	// Maps handle ID to Handle
	handles map[uint32]*Handle

	// Maps actor ID to handle ID
	actorToHandle map[ActorID]uint32

	// Maps service name to handle ID
	nameToHandle map[string]uint32

	// Counter for generating unique handle IDs
	handleCounter uint32
}

// NewHandleManager creates a new HandleManager.
func NewHandleManager() *HandleManager {
	return &HandleManager{
		handles:       make(map[uint32]*Handle),
		actorToHandle: make(map[ActorID]uint32),
		nameToHandle:  make(map[string]uint32),
		handleCounter: 1,
	}
}

// AllocateHandle creates a new handle for an actor.
func (hm *HandleManager) AllocateHandle(actorID ActorID, name string) (*Handle, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	// Check if actor already has a handle
	if existingHandleID, exists := hm.actorToHandle[actorID]; exists {
		return hm.handles[existingHandleID], nil
	}

	// Check if name is already taken
	if name != "" {
		if _, exists := hm.nameToHandle[name]; exists {
			return nil, fmt.Errorf("service name '%s' already exists", name)
		}
	}

	// Generate new handle ID
	handleID := hm.handleCounter
	hm.handleCounter++

	handle := &Handle{
		ID:      handleID,
		ActorID: actorID,
		Name:    name,
	}

	// Store mappings
	hm.handles[handleID] = handle
	hm.actorToHandle[actorID] = handleID
	if name != "" {
		hm.nameToHandle[name] = handleID
	}

	return handle, nil
}

// GetHandle retrieves a handle by ID.
func (hm *HandleManager) GetHandle(handleID uint32) (*Handle, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	handle, exists := hm.handles[handleID]
	return handle, exists
}

// GetHandleByActor retrieves a handle by actor ID.
func (hm *HandleManager) GetHandleByActor(actorID ActorID) (*Handle, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if handleID, exists := hm.actorToHandle[actorID]; exists {
		return hm.handles[handleID], true
	}
	return nil, false
}

// GetHandleByName retrieves a handle by service name.
func (hm *HandleManager) GetHandleByName(name string) (*Handle, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if handleID, exists := hm.nameToHandle[name]; exists {
		return hm.handles[handleID], true
	}
	return nil, false
}

// HasName reports whether a service name is taken.
func (hm *HandleManager) HasName(name string) bool {
	_, exists := hm.GetHandleByName(name)
	return exists
}

// ReleaseHandle removes a handle and its mappings.
func (hm *HandleManager) ReleaseHandle(handleID uint32) error {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	handle, exists := hm.handles[handleID]
	if !exists {
		return fmt.Errorf("handle %d not found", handleID)
	}

	// Remove all mappings
	delete(hm.handles, handleID)
	delete(hm.actorToHandle, handle.ActorID)
	if handle.Name != "" {
		delete(hm.nameToHandle, handle.Name)
	}

	return nil
}

// ListHandles returns all handles.
func (hm *HandleManager) ListHandles() []*Handle {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	handles := make([]*Handle, 0, len(hm.handles))
	for _, handle := range hm.handles {
		handles = append(handles, handle)
	}
	return handles
}

// ListNamed returns the handles registered under a service name, sorted by
// name.
func (hm *HandleManager) ListNamed() []*Handle {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	handles := make([]*Handle, 0, len(hm.nameToHandle))
	for _, handleID := range hm.nameToHandle {
		handles = append(handles, hm.handles[handleID])
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Name < handles[j].Name })
	return handles
}
