package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
)

type MessageType string

// Client to server.
const (
	TypeCreateRoom   MessageType = "create-room"
	TypeJoinRoom     MessageType = "join-room"
	TypeHostOffer    MessageType = "host-offer"
	TypeViewerAnswer MessageType = "viewer-answer"
	TypeICECandidate MessageType = "ice-candidate"
)

// Server to client. ice-candidate is used in both directions.
const (
	TypePINValid       MessageType = "pin-valid"
	TypePINInvalid     MessageType = "pin-invalid"
	TypeError          MessageType = "error"
	TypeUpdateUserList MessageType = "update-user-list"
	TypeNewViewer      MessageType = "new-viewer"
	TypeReceiveOffer   MessageType = "receive-offer"
	TypeReceiveAnswer  MessageType = "receive-answer"
	TypeStreamEnded    MessageType = "stream-ended"
)

const (
	errMessageRoomNotFound   = "Room not found"
	errMessageInvalidMessage = "invalid message"
)

// Envelope is the frame carried by every WebSocket text message.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CreateRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type HostOfferPayload struct {
	ViewerID string          `json:"viewerId"`
	Offer    json.RawMessage `json:"offer,omitempty"`
}

type ViewerAnswerPayload struct {
	HostID string          `json:"hostId"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

type ICECandidatePayload struct {
	TargetID  string          `json:"targetId"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type NewViewerPayload struct {
	ViewerID string `json:"viewerId"`
}

type ReceiveOfferPayload struct {
	Offer  json.RawMessage `json:"offer,omitempty"`
	HostID string          `json:"hostId"`
}

type ReceiveAnswerPayload struct {
	Answer   json.RawMessage `json:"answer,omitempty"`
	ViewerID string          `json:"viewerId"`
}

type RelayedCandidatePayload struct {
	Candidate json.RawMessage `json:"candidate,omitempty"`
	SenderID  string          `json:"senderId"`
}

var errMissingType = errors.New("missing message type")

// ParseEnvelope decodes one inbound frame. The payload is left undecoded.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, errMissingType
	}
	return env, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, v)
}

// encodeFrame renders an outbound frame once so it can be queued to many
// connections. Relayed SDP and candidates are compacted but otherwise
// unchanged; HTML escaping is off so they round-trip byte-for-byte modulo
// whitespace.
func encodeFrame(typ MessageType, payload any) ([]byte, error) {
	frame := struct {
		Type    MessageType `json:"type"`
		Payload any         `json:"payload,omitempty"`
	}{Type: typ, Payload: payload}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(frame); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
