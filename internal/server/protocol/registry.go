package protocol

import "github.com/yndnr/pixelflut-go/pkg/cmap"

// Registry tracks live sessions so they can be force-closed at shutdown.
type Registry struct {
	sessions *cmap.Map[*Session]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: cmap.New[*Session]()}
}

// Add registers s.
func (r *Registry) Add(s *Session) {
	r.sessions.Set(s.ID(), s)
}

// Remove unregisters the session with the given id.
func (r *Registry) Remove(id string) {
	r.sessions.Delete(id)
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	return r.sessions.Get(id)
}

// Close force-closes and unregisters one session.
func (r *Registry) Close(id string) bool {
	s, ok := r.sessions.Pop(id)
	if !ok {
		return false
	}
	_ = s.Close()
	return true
}

// CloseAll force-closes every registered session and returns how many
// were closed.
func (r *Registry) CloseAll() int {
	closed := 0
	for _, id := range r.sessions.Keys() {
		if r.Close(id) {
			closed++
		}
	}
	return closed
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	return r.sessions.Count()
}
