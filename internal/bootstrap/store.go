package bootstrap

import (
	"sync"

	"github.com/frameport/frameport/internal/shared/id"
	"github.com/frameport/frameport/internal/window"
)

// PropsStore is the process-wide mapping from bootstrap ID to serialized
// initial props, used only on the reference-passing path. Every Put is paired
// with a Delete registered in the owning instance's cleanup registry; no
// entry may outlive the instance that created it.
type PropsStore struct {
	mu      sync.RWMutex
	entries map[id.BootstrapID]map[string]any
}

// NewPropsStore creates an empty props store.
func NewPropsStore() *PropsStore {
	return &PropsStore{entries: make(map[id.BootstrapID]map[string]any)}
}

// Put registers props under a bootstrap ID.
func (s *PropsStore) Put(bid id.BootstrapID, props map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[bid] = props
}

// Get retrieves props by bootstrap ID.
func (s *PropsStore) Get(bid id.BootstrapID) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props, ok := s.entries[bid]
	return props, ok
}

// Delete removes an entry.
func (s *PropsStore) Delete(bid id.BootstrapID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, bid)
}

// Len reports the number of live entries.
func (s *PropsStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// WindowStore is the process-wide mapping from bootstrap ID to the parent
// proxy window, used when the child must reach a non-ancestor parent through
// a global reference. Same insert/delete pairing rule as PropsStore.
type WindowStore struct {
	mu      sync.RWMutex
	entries map[id.BootstrapID]*window.Proxy
}

// NewWindowStore creates an empty window store.
func NewWindowStore() *WindowStore {
	return &WindowStore{entries: make(map[id.BootstrapID]*window.Proxy)}
}

// Put registers a proxy window under a bootstrap ID.
func (s *WindowStore) Put(bid id.BootstrapID, win *window.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[bid] = win
}

// Get retrieves a proxy window by bootstrap ID.
func (s *WindowStore) Get(bid id.BootstrapID) (*window.Proxy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	win, ok := s.entries[bid]
	return win, ok
}

// Delete removes an entry.
func (s *WindowStore) Delete(bid id.BootstrapID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, bid)
}

// Len reports the number of live entries.
func (s *WindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var (
	propsStore  *PropsStore
	windowStore *WindowStore
	storeOnce   sync.Once
)

// Props returns the process-wide props store.
func Props() *PropsStore {
	storeOnce.Do(initStores)
	return propsStore
}

// Windows returns the process-wide window store.
func Windows() *WindowStore {
	storeOnce.Do(initStores)
	return windowStore
}

func initStores() {
	propsStore = NewPropsStore()
	windowStore = NewWindowStore()
}
