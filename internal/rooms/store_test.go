package rooms

import (
	"errors"
	"testing"
)

func TestCreateOrReclaimHost_CreatesRoom(t *testing.T) {
	s := NewStore()

	room, created := s.CreateOrReclaimHost("school-league", "h1", "Coach")
	if !created {
		t.Fatalf("created=false, want true")
	}
	if room.HostID != "h1" {
		t.Fatalf("HostID=%q, want %q", room.HostID, "h1")
	}
	if got := room.Users["h1"]; got != "Coach" {
		t.Fatalf("Users[h1]=%q, want %q", got, "Coach")
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d, want 1", s.Len())
	}
}

func TestCreateOrReclaimHost_ReclaimKeepsMembers(t *testing.T) {
	s := NewStore()
	s.CreateOrReclaimHost("r", "h1", "Old")
	if _, err := s.AddViewer("r", "v1", "Viewer"); err != nil {
		t.Fatalf("AddViewer: %v", err)
	}

	room, created := s.CreateOrReclaimHost("r", "h2", "New")
	if created {
		t.Fatalf("created=true on reclaim")
	}
	if room.HostID != "h2" {
		t.Fatalf("HostID=%q, want %q", room.HostID, "h2")
	}
	want := map[string]string{"h1": "Old", "v1": "Viewer", "h2": "New"}
	if len(room.Users) != len(want) {
		t.Fatalf("Users=%v, want %v", room.Users, want)
	}
	for id, name := range want {
		if room.Users[id] != name {
			t.Fatalf("Users[%s]=%q, want %q", id, room.Users[id], name)
		}
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d, want 1", s.Len())
	}
}

func TestAddViewer_RoomNotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.AddViewer("missing", "v1", "x"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err=%v, want ErrRoomNotFound", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len=%d, want 0", s.Len())
	}
}

func TestAddViewer_SameConnectionOverwritesName(t *testing.T) {
	s := NewStore()
	s.CreateOrReclaimHost("r", "h", "Host")
	s.AddViewer("r", "v", "first")
	room, err := s.AddViewer("r", "v", "second")
	if err != nil {
		t.Fatalf("AddViewer: %v", err)
	}
	if len(room.Users) != 2 || room.Users["v"] != "second" {
		t.Fatalf("Users=%v", room.Users)
	}
}

func TestRemoveMember(t *testing.T) {
	s := NewStore()
	s.CreateOrReclaimHost("r", "h", "Host")
	s.AddViewer("r", "v", "Viewer")

	wasHost, ok := s.RemoveMember("r", "v")
	if !ok || wasHost {
		t.Fatalf("RemoveMember(viewer) wasHost=%v ok=%v, want false true", wasHost, ok)
	}
	wasHost, ok = s.RemoveMember("r", "h")
	if !ok || !wasHost {
		t.Fatalf("RemoveMember(host) wasHost=%v ok=%v, want true true", wasHost, ok)
	}
	if _, ok := s.RemoveMember("missing", "h"); ok {
		t.Fatalf("RemoveMember on missing room returned ok=true")
	}
}

func TestRemoveMember_DisplacedHostIsNotHost(t *testing.T) {
	s := NewStore()
	s.CreateOrReclaimHost("r", "h1", "A")
	s.CreateOrReclaimHost("r", "h2", "B")

	wasHost, ok := s.RemoveMember("r", "h1")
	if !ok || wasHost {
		t.Fatalf("displaced host wasHost=%v ok=%v, want false true", wasHost, ok)
	}
}

func TestDelete(t *testing.T) {
	s := NewStore()
	s.CreateOrReclaimHost("r", "h", "Host")
	s.Delete("r")
	if _, ok := s.Get("r"); ok {
		t.Fatalf("room still present after Delete")
	}
	s.Delete("r")
	if s.Len() != 0 {
		t.Fatalf("Len=%d, want 0", s.Len())
	}
}

func TestMembersIsACopy(t *testing.T) {
	s := NewStore()
	room, _ := s.CreateOrReclaimHost("r", "h", "Host")
	m := room.Members()
	m["x"] = "intruder"
	if _, ok := room.Users["x"]; ok {
		t.Fatalf("mutating Members() leaked into the room")
	}
}
