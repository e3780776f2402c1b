package status

import (
	"sync"
	"time"

	"github.com/ziadkadry99/cellwatch/internal/cell"
)

// Hub owns the current State. Every setter publishes an Event to all
// subscribers; a subscriber whose buffer is full misses that event but can
// always recover the latest state from the next one or from Snapshot.
type Hub struct {
	mu         sync.Mutex
	state      State
	seq        uint64
	subs       map[uint64]chan Event
	nextSub    uint64
	emailTimer *time.Timer
	closed     bool
	now        func() time.Time
}

// NewHub creates a hub whose initial status message is msg.
func NewHub(msg string) *Hub {
	return &Hub{
		state: State{StatusMessage: msg, Severity: SeverityInfo},
		subs:  make(map[uint64]chan Event),
		now:   time.Now,
	}
}

// Snapshot returns a copy of the current state.
func (h *Hub) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.clone()
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func unregisters it and closes the channel; it is safe to
// call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// SetStatus updates the status line.
func (h *Hub) SetStatus(msg string, sev Severity) {
	h.update(EventStatus, func(s *State) {
		s.StatusMessage = msg
		s.Severity = sev
	})
}

// SetCell publishes a freshly read snapshot.
func (h *Hub) SetCell(snap cell.Snapshot, scanCount uint64) {
	h.update(EventCell, func(s *State) {
		s.Cell = NewCellView(snap)
		s.HasData = true
		s.ScanCount = scanCount
	})
}

// ClearCell marks the current data as unavailable.
func (h *Hub) ClearCell() {
	h.update(EventCell, func(s *State) {
		s.HasData = false
	})
}

// SetLoading flags a manual scan in progress.
func (h *Hub) SetLoading(loading bool) {
	h.update(EventLoading, func(s *State) {
		s.Loading = loading
	})
}

// SetEmailLoading flags a manual report in progress.
func (h *Hub) SetEmailLoading(loading bool) {
	h.update(EventLoading, func(s *State) {
		s.EmailLoading = loading
	})
}

// SetEmailStatus shows a delivery outcome. A positive ttl hides it again
// after that long unless a newer email status replaced it.
func (h *Hub) SetEmailStatus(msg string, sev Severity, ttl time.Duration) {
	h.mu.Lock()
	if h.emailTimer != nil {
		h.emailTimer.Stop()
		h.emailTimer = nil
	}
	h.mu.Unlock()

	h.update(EventEmail, func(s *State) {
		s.Email = EmailStatus{Visible: true, Message: msg, Severity: sev}
	})

	if ttl <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(ttl, func() {
		h.mu.Lock()
		current := h.emailTimer == t
		if current {
			h.emailTimer = nil
		}
		h.mu.Unlock()
		if current {
			h.update(EventEmail, func(s *State) { s.Email.Visible = false })
		}
	})
	h.emailTimer = t
}

// Close stops pending timers and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	if h.emailTimer != nil {
		h.emailTimer.Stop()
		h.emailTimer = nil
	}
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) update(typ EventType, fn func(*State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	fn(&h.state)
	h.state.CanSendEmail = !h.state.Loading && !h.state.EmailLoading && h.state.HasData
	h.seq++

	evt := Event{Seq: h.seq, Type: typ, State: h.state.clone(), At: h.now()}
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
