// Package signaling relays WebRTC session setup between one broadcaster and
// the viewers of its room.
//
// A Coordinator owns all room and membership state and processes events on a
// single goroutine. Server upgrades GET /signal to a WebSocket and pumps JSON
// frames of the form {"type": "...", "payload": {...}} between the socket and
// the coordinator. Offers, answers and ICE candidates are forwarded verbatim;
// the relay never inspects SDP.
package signaling
