package pipeline

import "testing"

func TestInMemorySessionStore_get_set_delete(t *testing.T) {
	store := NewInMemorySessionStore()

	if _, ok := store.Get("missing"); ok {
		t.Error("empty store should not find anything")
	}

	store.Set(&SessionState{ID: "s1", Stage: StageIdle})
	s, ok := store.Get("s1")
	if !ok || s.ID != "s1" {
		t.Fatalf("Get after Set: ok=%v", ok)
	}

	store.Delete("s1")
	if _, ok := store.Get("s1"); ok {
		t.Error("deleted session should be gone")
	}
}

func TestInMemorySessionStore_list_ids(t *testing.T) {
	store := NewInMemorySessionStore()
	store.Set(&SessionState{ID: "a"})
	store.Set(&SessionState{ID: "b"})

	ids := store.ListIDs()
	if len(ids) != 2 {
		t.Errorf("expected 2 ids, got %d", len(ids))
	}
}
