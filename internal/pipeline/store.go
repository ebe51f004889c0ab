package pipeline

// SessionStore is the persistence abstraction for session state.
// Implementations can be in-memory, file-based, or remote. The
// SessionRepository uses SessionStore for all reads and writes; callers of
// the repository do not need to know which store is used.
type SessionStore interface {
	Get(id string) (*SessionState, bool)
	Set(s *SessionState)
	Delete(id string)
	ListIDs() []string
}

// InMemorySessionStore is an in-memory implementation of SessionStore.
type InMemorySessionStore struct {
	sessions map[string]*SessionState
}

// NewInMemorySessionStore returns a new empty in-memory store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]*SessionState),
	}
}

// Get implements SessionStore.Get.
func (s *InMemorySessionStore) Get(id string) (*SessionState, bool) {
	st, ok := s.sessions[id]
	return st, ok
}

// Set implements SessionStore.Set.
func (s *InMemorySessionStore) Set(st *SessionState) {
	s.sessions[st.ID] = st
}

// Delete implements SessionStore.Delete.
func (s *InMemorySessionStore) Delete(id string) {
	delete(s.sessions, id)
}

// ListIDs implements SessionStore.ListIDs.
func (s *InMemorySessionStore) ListIDs() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
