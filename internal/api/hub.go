package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pieqf/wavesim/internal/controller"
)

// Hub keeps the latest controller snapshot and fans it out to stream
// subscribers. Publish is called from the tick loop at full rate; Flush
// sends at most one frame per call, so subscribers see a throttled view.
type Hub struct {
	mu      sync.Mutex
	latest  controller.Snapshot
	have    bool
	version uint64
	sent    uint64
	subs    map[int]chan []byte
	nextID  int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan []byte)}
}

// Publish stores s as the latest snapshot. It never blocks on subscribers.
func (h *Hub) Publish(s controller.Snapshot) {
	h.mu.Lock()
	h.latest = s
	h.have = true
	h.version++
	h.mu.Unlock()
}

// Latest returns the most recent snapshot, if any was published.
func (h *Hub) Latest() (controller.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.have
}

// Subscribe registers a stream consumer. The channel receives encoded
// snapshots; a slow consumer misses frames rather than blocking the hub.
func (h *Hub) Subscribe() (int, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan []byte, 4)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of stream consumers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Flush sends the latest snapshot to every subscriber if it changed since
// the previous flush.
func (h *Hub) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.have || h.version == h.sent || len(h.subs) == 0 {
		return
	}
	data, err := json.Marshal(h.latest)
	if err != nil {
		slog.Error("encode snapshot", "error", err)
		return
	}
	h.sent = h.version
	for _, ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// Run flushes every interval until stop is closed.
func (h *Hub) Run(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			h.Flush()
		case <-stop:
			return
		}
	}
}
