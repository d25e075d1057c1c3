package server

import (
	"sync"
)

// pendingSlot is a disconnected-but-not-yet-freed slot, kept alive for
// SPEC_FULL.md §4.8's reconnection grace window. The resumption key is
// the remote address the original connection presented; a real session
// token exchanged at handshake would be stronger, but the spec's wire
// format (§4.2) is otherwise unchanged, so this expansion keys
// resumption off the one piece of connection identity already available
// without adding a payload field.
type pendingSlot struct {
	index        uint32
	deadlineFrame uint32
}

// reconnectTable tracks slots suspended (not freed) during their grace
// window, keyed by the disconnecting connection's remote address.
type reconnectTable struct {
	mu      sync.Mutex
	pending map[string]pendingSlot
}

func newReconnectTable() *reconnectTable {
	return &reconnectTable{pending: make(map[string]pendingSlot)}
}

func (r *reconnectTable) suspend(key string, index uint32, deadlineFrame uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[key] = pendingSlot{index: index, deadlineFrame: deadlineFrame}
}

// resume removes and returns the pending slot for key if it has not yet
// expired as of currentFrame.
func (r *reconnectTable) resume(key string, currentFrame uint32) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[key]
	if !ok || currentFrame > p.deadlineFrame {
		return 0, false
	}
	delete(r.pending, key)
	return p.index, true
}

// expired removes and returns every pending slot whose deadline has
// passed as of currentFrame, so the caller can finally release them and
// emit the deferred Leave event.
func (r *reconnectTable) expired(currentFrame uint32) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uint32
	for key, p := range r.pending {
		if currentFrame > p.deadlineFrame {
			out = append(out, p.index)
			delete(r.pending, key)
		}
	}
	return out
}
