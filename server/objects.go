package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// Object is a provider-side object that programs can address through an
// imported reference.
type Object interface {
	// Kind tags the reference ("element", "text-range", ...).
	Kind() string

	// GetProperty reads one property by id.
	GetProperty(property int32) (bytecode.Value, error)

	// Navigate walks to a related object, or errors when there is none in
	// that direction.
	Navigate(direction int32) (Object, error)

	// InvokePattern calls a control-pattern method.
	InvokePattern(pattern, method int32, args []bytecode.Value) (bytecode.Value, error)
}

type objectEntry struct {
	obj      Object
	created  time.Time
	lastUsed time.Time
}

// ObjectStore maps opaque string references to provider objects and
// implements the interpreter's Provider interface on top of them. Objects
// reached through navigation are registered on the fly so their references
// can travel back to the client.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]*objectEntry
	nextID  atomic.Uint64
}

// NewObjectStore creates an empty store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]*objectEntry)}
}

// Register adds an object and returns its opaque reference.
func (s *ObjectStore) Register(obj Object) string {
	ref := fmt.Sprintf("o-%d", s.nextID.Add(1))

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.objects[ref] = &objectEntry{obj: obj, created: now, lastUsed: now}
	return ref
}

// Lookup retrieves the object behind a reference.
func (s *ObjectStore) Lookup(ref string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objects[ref]
	if !ok {
		return nil, false
	}
	e.lastUsed = time.Now()
	return e.obj, true
}

// Release removes a reference.
func (s *ObjectStore) Release(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
}

// Len reports how many objects are registered.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Sweep removes objects that haven't been touched within the TTL and
// returns how many were released.
func (s *ObjectStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for ref, e := range s.objects {
		if e.lastUsed.Before(cutoff) {
			delete(s.objects, ref)
			removed++
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *ObjectStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

// GetProperty implements interp.Provider.
func (s *ObjectStore) GetProperty(ref string, property int32) (bytecode.Value, error) {
	obj, ok := s.Lookup(ref)
	if !ok {
		return bytecode.Value{}, fmt.Errorf("server: no object %q", ref)
	}
	return obj.GetProperty(property)
}

// Navigate implements interp.Provider. The reached object is registered so
// the returned reference stays addressable.
func (s *ObjectStore) Navigate(ref string, direction int32) (bytecode.Value, error) {
	obj, ok := s.Lookup(ref)
	if !ok {
		return bytecode.Value{}, fmt.Errorf("server: no object %q", ref)
	}
	next, err := obj.Navigate(direction)
	if err != nil {
		return bytecode.Value{}, err
	}
	return bytecode.ObjectRefValue(next.Kind(), s.Register(next)), nil
}

// InvokePattern implements interp.Provider.
func (s *ObjectStore) InvokePattern(ref string, pattern, method int32, args []bytecode.Value) (bytecode.Value, error) {
	obj, ok := s.Lookup(ref)
	if !ok {
		return bytecode.Value{}, fmt.Errorf("server: no object %q", ref)
	}
	return obj.InvokePattern(pattern, method, args)
}
