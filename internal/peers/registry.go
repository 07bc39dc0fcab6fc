// Package peers tracks which room each live connection has joined and under
// what display name. Like rooms.Store it is owned by the coordinator loop and
// does no locking.
package peers

import "sort"

type Binding struct {
	RoomID      string
	DisplayName string
}

type Registry struct {
	bindings map[string]Binding
	byRoom   map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[string]Binding),
		byRoom:   make(map[string]map[string]struct{}),
	}
}

// Bind records that connID joined roomID. A connection is in at most one room;
// binding again moves it.
func (r *Registry) Bind(connID, roomID, displayName string) {
	if prev, ok := r.bindings[connID]; ok {
		r.removeFromRoom(prev.RoomID, connID)
	}
	r.bindings[connID] = Binding{RoomID: roomID, DisplayName: displayName}
	members := r.byRoom[roomID]
	if members == nil {
		members = make(map[string]struct{})
		r.byRoom[roomID] = members
	}
	members[connID] = struct{}{}
}

// Unbind forgets connID and returns its last binding, if any.
func (r *Registry) Unbind(connID string) (Binding, bool) {
	b, ok := r.bindings[connID]
	if !ok {
		return Binding{}, false
	}
	delete(r.bindings, connID)
	r.removeFromRoom(b.RoomID, connID)
	return b, true
}

func (r *Registry) Lookup(connID string) (Binding, bool) {
	b, ok := r.bindings[connID]
	return b, ok
}

// Members lists the connections bound to roomID in sorted order.
func (r *Registry) Members(roomID string) []string {
	members := r.byRoom[roomID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	return len(r.bindings)
}

func (r *Registry) removeFromRoom(roomID, connID string) {
	members := r.byRoom[roomID]
	delete(members, connID)
	if len(members) == 0 {
		delete(r.byRoom, roomID)
	}
}
