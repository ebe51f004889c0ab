package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeListener receives a snapshot of a session after every mutation.
// Listeners are invoked outside the repository lock and must not mutate the
// snapshot's shared Transcript/Analysis pointers.
type ChangeListener func(SessionState)

// SessionRepository is the concurrency-safe owner of all session state. Every
// mutation goes through ApplyUpdate or one of the error/cost entry points, so
// concurrent partial updates are last-write-wins per field and race-free by
// construction.
type SessionRepository struct {
	mu        sync.RWMutex
	store     SessionStore
	listeners []ChangeListener
}

// NewSessionRepository constructs a repository with a default in-memory store.
func NewSessionRepository() *SessionRepository {
	return NewSessionRepositoryWithStore(NewInMemorySessionStore())
}

// NewSessionRepositoryWithStore constructs a repository that uses the given
// store. Useful for testing or for plugging in a different backend.
func NewSessionRepositoryWithStore(store SessionStore) *SessionRepository {
	return &SessionRepository{store: store}
}

// Subscribe registers a listener notified after every session mutation.
// Not safe to call concurrently with mutations; wire listeners up front.
func (r *SessionRepository) Subscribe(fn ChangeListener) {
	r.listeners = append(r.listeners, fn)
}

// Create starts a new idle session and returns its snapshot.
func (r *SessionRepository) Create() SessionState {
	r.mu.Lock()
	s := &SessionState{
		ID:        uuid.NewString(),
		Stage:     StageIdle,
		Costs:     NewCostLedger(),
		CreatedAt: time.Now().UTC(),
	}
	r.store.Set(s)
	snap := snapshotLocked(s)
	r.mu.Unlock()

	r.notify(snap)
	return snap
}

// Snapshot returns a copy of the session's current state.
func (r *SessionRepository) Snapshot(id string) (SessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.store.Get(id)
	if !ok {
		return SessionState{}, false
	}
	return snapshotLocked(s), true
}

// ApplyUpdate merges u into the session. Nil fields of u are left untouched;
// this is a pure per-field merge, never a whole-object replace. The resulting
// snapshot is returned and all listeners are notified.
func (r *SessionRepository) ApplyUpdate(id string, u SessionUpdate) (SessionState, error) {
	r.mu.Lock()
	s, ok := r.store.Get(id)
	if !ok {
		r.mu.Unlock()
		return SessionState{}, ErrSessionNotFound
	}

	if u.Stage != nil {
		s.Stage = *u.Stage
	}
	if u.Asset != nil {
		s.Asset = *u.Asset
	}
	if u.VideoURL != nil {
		s.VideoURL = *u.VideoURL
	}
	if u.VideoDurationSeconds != nil {
		s.VideoDurationSeconds = *u.VideoDurationSeconds
	}
	if u.Frames != nil {
		s.Frames = u.Frames
	}
	if u.Transcript != nil {
		s.Transcript = u.Transcript
	}
	if u.Analysis != nil {
		s.Analysis = u.Analysis
	}

	snap := snapshotLocked(s)
	r.mu.Unlock()

	r.notify(snap)
	return snap, nil
}

// AppendError records a normalized error against one section. The stage is
// not changed; other sections continue independently.
func (r *SessionRepository) AppendError(id string, section Section) (SessionState, error) {
	r.mu.Lock()
	s, ok := r.store.Get(id)
	if !ok {
		r.mu.Unlock()
		return SessionState{}, ErrSessionNotFound
	}
	s.Errors = append(s.Errors, ErrorRecord{
		Section:    section,
		Message:    normalizedMessage(section),
		OccurredAt: time.Now().UTC(),
	})
	snap := snapshotLocked(s)
	r.mu.Unlock()

	r.notify(snap)
	return snap, nil
}

// ClearSectionErrors removes all records for one section, leaving the other
// sections' records in place. Used by retry dispatch.
func (r *SessionRepository) ClearSectionErrors(id string, section Section) error {
	r.mu.Lock()
	s, ok := r.store.Get(id)
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	kept := s.Errors[:0]
	for _, rec := range s.Errors {
		if rec.Section != section {
			kept = append(kept, rec)
		}
	}
	s.Errors = kept
	snap := snapshotLocked(s)
	r.mu.Unlock()

	r.notify(snap)
	return nil
}

// RecordCost sets a contributor's cumulative amount in the session ledger.
func (r *SessionRepository) RecordCost(id, contributor string, amount float64) error {
	r.mu.RLock()
	s, ok := r.store.Get(id)
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	// The ledger is concurrency-safe on its own.
	s.Costs.Record(contributor, amount)
	return nil
}

// Delete removes a session. Deleting an unknown session is a no-op for
// idempotency.
func (r *SessionRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Delete(id)
}

// ActiveSessionCount returns the number of sessions that have not completed.
// Used for metrics.
func (r *SessionRepository) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, id := range r.store.ListIDs() {
		if s, ok := r.store.Get(id); ok && s.Stage != StageComplete {
			n++
		}
	}
	return n
}

func (r *SessionRepository) notify(snap SessionState) {
	for _, fn := range r.listeners {
		fn(snap)
	}
}

// snapshotLocked copies s for callers outside the lock. Slices are copied;
// Transcript and Analysis pointers are shared but treated as immutable once
// set, and the ledger carries its own lock.
func snapshotLocked(s *SessionState) SessionState {
	snap := *s
	if s.Frames != nil {
		snap.Frames = append([]FrameDescriptor(nil), s.Frames...)
	}
	if s.Errors != nil {
		snap.Errors = append([]ErrorRecord(nil), s.Errors...)
	}
	return snap
}
