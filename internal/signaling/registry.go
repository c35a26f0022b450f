package signaling

import "sync"

// Registry tracks which participants belong to which room and is the single
// authority on admission. Capacity check and append happen under one lock,
// so two racing joins can never overfill a room.
type Registry struct {
	mu       sync.Mutex
	capacity int
	members  map[string][]string // roomID -> participant ids in join order
	roomOf   map[string]string   // participant id -> roomID
}

func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		members:  make(map[string][]string),
		roomOf:   make(map[string]string),
	}
}

// Join admits participantID into roomID, creating the room if needed.
// It returns the members that existed before this join, in join order, and
// whether the participant was admitted. A full room refuses without mutation.
func (r *Registry) Join(roomID, participantID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.members[roomID]
	if len(current) >= r.capacity {
		return nil, false
	}

	existing := make([]string, len(current))
	copy(existing, current)

	r.members[roomID] = append(current, participantID)
	r.roomOf[participantID] = roomID
	return existing, true
}

// Leave removes participantID from whichever room it was last recorded in
// and returns that room plus the remaining members. It is a no-op for a
// participant that is not in any room, so double teardown is safe. An
// emptied room is deleted; for admission it is then indistinguishable from
// one that never existed.
func (r *Registry) Leave(participantID string) (string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.roomOf[participantID]
	if !ok {
		return "", nil
	}
	delete(r.roomOf, participantID)

	current := r.members[roomID]
	remaining := make([]string, 0, len(current))
	for _, id := range current {
		if id != participantID {
			remaining = append(remaining, id)
		}
	}

	if len(remaining) == 0 {
		delete(r.members, roomID)
	} else {
		r.members[roomID] = remaining
	}

	out := make([]string, len(remaining))
	copy(out, remaining)
	return roomID, out
}

// RoomOf reports the room participantID currently belongs to.
func (r *Registry) RoomOf(participantID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.roomOf[participantID]
	return roomID, ok
}

// Members returns a snapshot of the room's membership in join order.
func (r *Registry) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.members[roomID]
	out := make([]string, len(current))
	copy(out, current)
	return out
}
