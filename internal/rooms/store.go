// Package rooms holds the in-memory room table: which connection hosts each
// room and the display names of everyone joined to it.
//
// A Store is not safe for concurrent use. The signaling coordinator owns one
// and only touches it from its event loop.
package rooms

import "errors"

var ErrRoomNotFound = errors.New("room not found")

// Room is one broadcast. Users maps connection id to display name for every
// joined connection, host included.
type Room struct {
	ID     string
	HostID string
	Users  map[string]string
}

// Members returns a copy of the membership map, safe to hand to an encoder
// after the loop moves on.
func (r *Room) Members() map[string]string {
	out := make(map[string]string, len(r.Users))
	for id, name := range r.Users {
		out[id] = name
	}
	return out
}

type Store struct {
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

func (s *Store) Get(roomID string) (*Room, bool) {
	r, ok := s.rooms[roomID]
	return r, ok
}

// CreateOrReclaimHost makes connID the host of roomID, creating the room if
// needed. An existing room keeps its other members, including a previous host
// that is still connected.
func (s *Store) CreateOrReclaimHost(roomID, connID, displayName string) (room *Room, created bool) {
	room, ok := s.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, Users: make(map[string]string)}
		s.rooms[roomID] = room
	}
	room.HostID = connID
	room.Users[connID] = displayName
	return room, !ok
}

func (s *Store) AddViewer(roomID, connID, displayName string) (*Room, error) {
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	room.Users[connID] = displayName
	return room, nil
}

// RemoveMember drops connID from roomID. ok is false when the room doesn't
// exist; wasHost reports whether connID was the room's current host.
func (s *Store) RemoveMember(roomID, connID string) (wasHost bool, ok bool) {
	room, ok := s.rooms[roomID]
	if !ok {
		return false, false
	}
	delete(room.Users, connID)
	return room.HostID == connID, true
}

func (s *Store) Delete(roomID string) {
	delete(s.rooms, roomID)
}

func (s *Store) Len() int {
	return len(s.rooms)
}
