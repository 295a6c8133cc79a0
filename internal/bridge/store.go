package bridge

import "sync"

// Outcome is the published result of one command: either a value or a
// captured failure.
type Outcome struct {
	Value any
	Err   error
}

// Store correlates request IDs with outcomes.
//
// Each entry is written once by the executor and taken once by the
// submitter that owns the ID. Submitters register interest with Expect
// before enqueueing and are woken by Publish instead of polling.
//
// Thread Safety: All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]Outcome
	waiters map[string]chan struct{}
}

// NewStore creates an empty result store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]Outcome),
		waiters: make(map[string]chan struct{}),
	}
}

// Expect registers interest in id and returns a channel that is closed
// once the outcome for id has been published.
func (s *Store) Expect(id string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.waiters[id]; ok {
		return ch
	}
	ch := make(chan struct{})
	if _, published := s.entries[id]; published {
		close(ch)
	}
	s.waiters[id] = ch
	return ch
}

// Publish stores the outcome for id and wakes its waiter.
//
// Returns ErrDuplicateOutcome if an outcome for id is already present.
func (s *Store) Publish(id string, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return ErrDuplicateOutcome
	}
	s.entries[id] = out
	if ch, ok := s.waiters[id]; ok {
		close(ch)
	}
	return nil
}

// Take removes and returns the outcome for id. The boolean is false if no
// outcome has been published yet.
func (s *Store) Take(id string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, ok := s.entries[id]
	if !ok {
		return Outcome{}, false
	}
	delete(s.entries, id)
	delete(s.waiters, id)
	return out, true
}

// Len returns the number of published outcomes not yet taken.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// forget drops the waiter registered for id when its command was never
// enqueued.
func (s *Store) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, id)
}
