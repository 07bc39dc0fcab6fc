package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEventsAndGauges(t *testing.T) {
	m := New()
	m.Inc(RoomCreated)
	m.Inc(RoomCreated)
	m.Inc(PINRejected)
	m.SetRooms(3)
	m.SetConnections(7)

	if got := testutil.ToFloat64(m.Events(RoomCreated)); got != 2 {
		t.Fatalf("room_created=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Events(PINRejected)); got != 1 {
		t.Fatalf("pin_rejected=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rooms); got != 3 {
		t.Fatalf("rooms=%v, want 3", got)
	}
	if got := testutil.ToFloat64(m.connections); got != 7 {
		t.Fatalf("connections=%v, want 7", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Inc(StreamEnded)
	m.SetConnections(2)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	for _, want := range []string{
		`aero_webrtc_broadcast_relay_events_total{event="stream_ended"} 1`,
		`aero_webrtc_broadcast_relay_connections 2`,
		`# TYPE aero_webrtc_broadcast_relay_rooms gauge`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Inc(RoomCreated)
	m.SetRooms(1)
	m.SetConnections(1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusInternalServerError)
	}
}
