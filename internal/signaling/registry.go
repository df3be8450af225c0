package signaling

import (
	"sort"
	"sync"
)

// Registry tracks which connections are members of which rooms.
//
// A room exists only while it has at least one member. Rooms hold at most a
// couple of connections, so one coarse lock guards everything.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	conns map[*Client]map[string]struct{}
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[*Client]struct{}),
		conns: make(map[*Client]map[string]struct{}),
	}
}

// Join adds c to room, creating the room on first use. Joining a room twice
// is a no-op; added reports whether the membership is new.
func (r *Registry) Join(c *Client, room string) (added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[room] = members
	}
	if _, ok := members[c]; ok {
		return false
	}
	members[c] = struct{}{}

	joined, ok := r.conns[c]
	if !ok {
		joined = make(map[string]struct{})
		r.conns[c] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes c from room. Leaving a room c is not in does nothing.
func (r *Registry) Leave(c *Client, room string) (removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(c, room)
}

func (r *Registry) leaveLocked(c *Client, room string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.conns[c]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.conns, c)
		}
	}
	return true
}

// DropConnection removes every membership of c in one step and returns the
// rooms c was in, sorted.
func (r *Registry) DropConnection(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.conns[c]
	rooms := make([]string, 0, len(joined))
	for room := range joined {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.leaveLocked(c, room)
	}
	sort.Strings(rooms)
	return rooms
}

// MembersOf returns a snapshot of the connections in room. Later membership
// changes do not affect the returned slice.
func (r *Registry) MembersOf(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// RoomsOf returns the rooms c is a member of, sorted.
func (r *Registry) RoomsOf(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns[c]))
	for room := range r.conns[c] {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Stats counts live rooms and connections holding at least one membership.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Rooms: len(r.rooms), Connections: len(r.conns)}
}
