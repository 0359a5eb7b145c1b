package session

import "sync"

// Hub is the per-node active-session registry: every session that has
// issued "activate" is fanned an "update" frame whenever a parameter's
// cache changes, except the session whose own in-flight "change" produced
// it (that session instead gets "changed", written by the caller before
// Broadcast runs, satisfying the ordering guarantee in §5(c)).
//
// Grounded on the teacher's SSE client registry
// (map[chan []byte]struct{} guarded by a mutex, best-effort non-blocking
// send) generalized from one shared event channel to one write per session.
type Hub struct {
	mu       sync.Mutex
	sessions map[*Worker]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: map[*Worker]struct{}{}}
}

// register marks w as connected to this hub; it starts inactive.
func (h *Hub) register(w *Worker) {
	h.mu.Lock()
	h.sessions[w] = struct{}{}
	h.mu.Unlock()
}

// unregister removes w, e.g. on disconnect.
func (h *Hub) unregister(w *Worker) {
	h.mu.Lock()
	delete(h.sessions, w)
	h.mu.Unlock()
}

// Broadcast writes line to every active session except exclude.
func (h *Hub) Broadcast(line []byte, exclude *Worker) {
	h.mu.Lock()
	targets := make([]*Worker, 0, len(h.sessions))
	for w := range h.sessions {
		if w == exclude || !w.isActive() {
			continue
		}
		targets = append(targets, w)
	}
	h.mu.Unlock()

	for _, w := range targets {
		w.writeLine(line)
	}
}

// ActiveCount reports how many sessions currently have active=true, used
// by the diagnostics endpoint.
func (h *Hub) ActiveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for w := range h.sessions {
		if w.isActive() {
			n++
		}
	}
	return n
}
