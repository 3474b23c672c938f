// Package protocol defines the named events exchanged between clients and
// the pairing server. All events are serialized as JSON and follow a
// consistent envelope format with a type discriminator. Signaling payloads
// (offer, answer, ice-candidate) are opaque: the server carries them as raw
// JSON and never inspects their contents.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/duetchat/duet/internal/interest"
)

// ---------------------------------------------------------------------------
// Event type constants
// ---------------------------------------------------------------------------

// Client -> Server event types. The signaling types (offer, answer,
// ice-candidate, stop_video) double as Server -> Client types when relayed.
const (
	TypeFindPartner  = "find_partner"
	TypeSendMessage  = "send_message"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeStopVideo    = "stop_video"
	TypeSkip         = "skip"
	TypeLeaveChat    = "leaveChat"
	TypePing         = "ping"
)

// Server -> Client event types.
const (
	TypeConnected           = "connected"
	TypeWaiting             = "waiting"
	TypePartnerFound        = "partner_found"
	TypeReceiveMessage      = "receive_message"
	TypePartnerDisconnected = "partner_disconnected"
	TypePong                = "pong"
)

// Sender values carried by receive_message.
const (
	SenderMe      = "me"
	SenderPartner = "partner"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the event type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server event structs
// ---------------------------------------------------------------------------

// FindPartnerMsg is sent by the client to enter matchmaking. Interests may
// be a comma-separated string, a list of tags, or absent; absent or empty
// interests normalize to the random sentinel.
type FindPartnerMsg struct {
	Type      string         `json:"type"`
	Interests interest.Input `json:"interests"`
}

// SendMessageMsg is a chat line addressed to the sender's current partner.
type SendMessageMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OfferMsg carries an opaque media-session offer for the current partner.
type OfferMsg struct {
	Type  string          `json:"type"`
	Offer json.RawMessage `json:"offer"`
}

// AnswerMsg carries an opaque media-session answer. To names the client the
// answer is addressed to, as learned from the forwarded offer's from field.
type AnswerMsg struct {
	Type   string          `json:"type"`
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

// ICECandidateMsg carries an opaque connectivity candidate for the current
// partner.
type ICECandidateMsg struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
}

// StopVideoMsg tells the partner the sender turned their video off.
type StopVideoMsg struct {
	Type string `json:"type"`
}

// SkipMsg tears down the current pairing and immediately re-enters
// matchmaking. Absent interests reuse the interests remembered from the
// sender's previous search.
type SkipMsg struct {
	Type      string         `json:"type"`
	Interests interest.Input `json:"interests"`
}

// LeaveChatMsg leaves the current chat or the waiting pool without starting
// a new search.
type LeaveChatMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client event structs
// ---------------------------------------------------------------------------

// ConnectedMsg is sent by the server when a new connection is established,
// announcing the client id assigned to it.
type ConnectedMsg struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

// WaitingMsg confirms the client has been placed in the waiting pool, with a
// human-readable description of what is being waited for.
type WaitingMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PartnerFoundMsg is sent to both sides of a new pairing, naming the
// partner's client id.
type PartnerFoundMsg struct {
	Type      string `json:"type"`
	PartnerID string `json:"partner_id"`
}

// ReceiveMessageMsg is a relayed chat line. Sender is "partner" on the copy
// delivered to the partner and "me" on the echo back to the author.
type ReceiveMessageMsg struct {
	Type   string `json:"type"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ServerOfferMsg forwards an opaque offer, tagged with the sender's client
// id so the receiver can address its answer.
type ServerOfferMsg struct {
	Type  string          `json:"type"`
	From  string          `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

// ServerAnswerMsg forwards an opaque answer, tagged with the sender's
// client id.
type ServerAnswerMsg struct {
	Type   string          `json:"type"`
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

// ServerICECandidateMsg forwards an opaque connectivity candidate, tagged
// with the sender's client id.
type ServerICECandidateMsg struct {
	Type      string          `json:"type"`
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// ServerStopVideoMsg relays a stop_video notification to the partner.
type ServerStopVideoMsg struct {
	Type string `json:"type"`
}

// PartnerDisconnectedMsg is the last event a client receives about a given
// partner: the partner skipped, left the chat, or dropped the connection.
type PartnerDisconnectedMsg struct {
	Type string `json:"type"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client event.
// It returns the event type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only event types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse event: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeFindPartner:
		var m FindPartnerMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeOffer:
		var m OfferMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeAnswer:
		var m AnswerMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeICECandidate:
		var m ICECandidateMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeStopVideo:
		var m StopVideoMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSkip:
		var m SkipMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveChat:
		var m LeaveChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client event type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server event.
// The msgType is injected into the payload under the "type" key. Top-level
// fields are re-assembled but their values are copied verbatim, so opaque
// signaling payloads pass through byte-for-byte.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("protocol: failed to split payload fields: %w", err)
	}

	typeField, err := json.Marshal(msgType)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal type: %w", err)
	}
	fields["type"] = typeField

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server event: %w", err)
	}
	return out, nil
}
