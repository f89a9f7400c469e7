package services

import "sync"

// recordingHub captures pipeline broadcasts for assertions.
type recordingHub struct {
	mu     sync.Mutex
	events []hubEvent
}

type hubEvent struct {
	EventType string
	Subtype   string
	Action    string
	Payload   interface{}
}

func (h *recordingHub) BroadcastUpdate(eventType, subtype, action string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{eventType, subtype, action, payload})
}

func (h *recordingHub) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}
