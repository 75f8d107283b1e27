// ABOUTME: Explicit room membership tracking for broadcast groups
// ABOUTME: Maintains room->connections and connection->rooms, mutated only by join/leave

package presence

import "sync"

// GroupRoom is the staff-wide broadcast room.
const GroupRoom = "group-chat"

// Rooms tracks which connections have joined which broadcast rooms. The
// delivery gateway queries members at fan-out time; membership never depends
// on transport-library bookkeeping.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]Sender   // room -> connID -> conn
	joined  map[string]map[string]struct{} // connID -> set of rooms
}

// NewRooms creates an empty room table.
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]Sender),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to a room. Joining twice is a no-op.
func (r *Rooms) Join(room string, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[room]; !ok {
		r.members[room] = make(map[string]Sender)
	}
	r.members[room][conn.ID()] = conn

	if _, ok := r.joined[conn.ID()]; !ok {
		r.joined[conn.ID()] = make(map[string]struct{})
	}
	r.joined[conn.ID()][room] = struct{}{}
}

// Leave removes the connection from a room.
func (r *Rooms) Leave(room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(room, connID)
}

// DropConn removes the connection from every room it joined. Called on
// disconnect.
func (r *Rooms) DropConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[connID] {
		r.leaveLocked(room, connID)
	}
}

// Members returns a snapshot of the connections currently in the room.
func (r *Rooms) Members(room string) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Sender, 0, len(r.members[room]))
	for _, conn := range r.members[room] {
		conns = append(conns, conn)
	}
	return conns
}

// Contains reports whether the connection has joined the room.
func (r *Rooms) Contains(room, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[room][connID]
	return ok
}

// Broadcast sends an event to every connection in the room, including the
// sender's own if joined.
func (r *Rooms) Broadcast(room, event string, payload any) {
	for _, conn := range r.Members(room) {
		conn.Send(event, payload)
	}
}

func (r *Rooms) leaveLocked(room, connID string) {
	if conns, ok := r.members[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, connID)
		}
	}
}
