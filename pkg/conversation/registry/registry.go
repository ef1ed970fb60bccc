package registry

import (
	"iter"
	"sort"
	"sync"

	"memory-dashboard-be/pkg/conversation/session"
)

// Registry holds the known sessions for one user, refreshed from the remote
// store. Refresh replaces the whole collection atomically: a failed fetch
// never leaves the registry half-updated, and readers always see either the
// previous snapshot or the new one.
type Registry struct {
	mu       sync.RWMutex
	sessions []session.Session
}

func New() *Registry {
	return &Registry{}
}

// Replace installs a new snapshot. Duplicate identifiers are collapsed,
// keeping the first occurrence, so the registry never holds two entries with
// the same id.
func (r *Registry) Replace(sessions []session.Session) {
	seen := make(map[string]struct{}, len(sessions))
	next := make([]session.Session, 0, len(sessions))
	for _, s := range sessions {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		next = append(next, s)
	}

	r.mu.Lock()
	r.sessions = next
	r.mu.Unlock()
}

// Snapshot returns a copy of the current contents in storage order.
func (r *Registry) Snapshot() []session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]session.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Contains reports whether a session id is currently known.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// OrderedForDisplay yields non-archived sessions by last activity, most
// recent first. The sequence is computed over a snapshot, so it is finite and
// restartable even while refreshes happen concurrently.
func (r *Registry) OrderedForDisplay() iter.Seq[session.Session] {
	snapshot := r.Snapshot()
	display := make([]session.Session, 0, len(snapshot))
	for _, s := range snapshot {
		if !s.Archived {
			display = append(display, s)
		}
	}
	sort.SliceStable(display, func(i, j int) bool {
		return display[i].UpdatedAt.After(display[j].UpdatedAt)
	})

	return func(yield func(session.Session) bool) {
		for _, s := range display {
			if !yield(s) {
				return
			}
		}
	}
}
