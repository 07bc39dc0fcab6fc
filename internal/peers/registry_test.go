package peers

import (
	"reflect"
	"testing"
)

func TestBindLookupUnbind(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", "room", "Alice")

	b, ok := r.Lookup("c1")
	if !ok || b.RoomID != "room" || b.DisplayName != "Alice" {
		t.Fatalf("Lookup=%+v ok=%v", b, ok)
	}

	b, ok = r.Unbind("c1")
	if !ok || b.RoomID != "room" {
		t.Fatalf("Unbind=%+v ok=%v", b, ok)
	}
	if _, ok := r.Lookup("c1"); ok {
		t.Fatalf("Lookup after Unbind returned ok=true")
	}
	if _, ok := r.Unbind("c1"); ok {
		t.Fatalf("second Unbind returned ok=true")
	}
	if got := r.Members("room"); len(got) != 0 {
		t.Fatalf("Members=%v, want empty", got)
	}
}

func TestMembersSorted(t *testing.T) {
	r := NewRegistry()
	r.Bind("c3", "room", "")
	r.Bind("c1", "room", "")
	r.Bind("c2", "other", "")
	r.Bind("c0", "room", "")

	if got, want := r.Members("room"), []string{"c0", "c1", "c3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Members(room)=%v, want %v", got, want)
	}
	if got, want := r.Members("other"), []string{"c2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Members(other)=%v, want %v", got, want)
	}
	if r.Len() != 4 {
		t.Fatalf("Len=%d, want 4", r.Len())
	}
}

func TestRebindMovesConnection(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", "a", "first")
	r.Bind("c1", "b", "second")

	if got := r.Members("a"); len(got) != 0 {
		t.Fatalf("Members(a)=%v, want empty", got)
	}
	if got, want := r.Members("b"), []string{"c1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Members(b)=%v, want %v", got, want)
	}
	b, _ := r.Lookup("c1")
	if b.DisplayName != "second" {
		t.Fatalf("DisplayName=%q, want %q", b.DisplayName, "second")
	}
	if r.Len() != 1 {
		t.Fatalf("Len=%d, want 1", r.Len())
	}
}
