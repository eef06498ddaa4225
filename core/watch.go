package core

import "sync"

// watchRegistry tracks death-watch subscriptions in both directions so that
// a terminating actor can be dropped as a target and as a watcher at once.
type watchRegistry struct {
	mu       sync.Mutex
	watchers map[ActorID]map[ActorID]struct{} // target -> watchers
	watching map[ActorID]map[ActorID]struct{} // watcher -> targets
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{
		watchers: make(map[ActorID]map[ActorID]struct{}),
		watching: make(map[ActorID]map[ActorID]struct{}),
	}
}

// add subscribes watcher to target. It returns false, without subscribing,
// when alive reports the target as already gone.
func (w *watchRegistry) add(watcher, target ActorID, alive func(ActorID) bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !alive(target) {
		return false
	}

	link(w.watchers, target, watcher)
	link(w.watching, watcher, target)
	return true
}

func (w *watchRegistry) remove(watcher, target ActorID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	unlink(w.watchers, target, watcher)
	unlink(w.watching, watcher, target)
}

// terminated drops every subscription involving id and returns the actors
// that were watching it.
func (w *watchRegistry) terminated(id ActorID) []ActorID {
	w.mu.Lock()
	defer w.mu.Unlock()

	var notify []ActorID
	for watcher := range w.watchers[id] {
		notify = append(notify, watcher)
		unlink(w.watching, watcher, id)
	}
	delete(w.watchers, id)

	for target := range w.watching[id] {
		unlink(w.watchers, target, id)
	}
	delete(w.watching, id)

	return notify
}

// count returns the number of actors watching target.
func (w *watchRegistry) count(target ActorID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watchers[target])
}

func link(m map[ActorID]map[ActorID]struct{}, from, to ActorID) {
	set, ok := m[from]
	if !ok {
		set = make(map[ActorID]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}

func unlink(m map[ActorID]map[ActorID]struct{}, from, to ActorID) {
	set, ok := m[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(m, from)
	}
}
