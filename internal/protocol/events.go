package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownCategory is returned by Decode for envelopes it has no variant for.
var ErrUnknownCategory = errors.New("unknown event category")

// Event is one variant per category of the relay protocol. Category reports
// the name a client emits the event under.
type Event interface {
	Category() Category
}

// VibeKind enumerates the presence updates carried by vibe_update.
type VibeKind string

const (
	VibeMood           VibeKind = "mood"
	VibeStatus         VibeKind = "status"
	VibeRitual         VibeKind = "ritual"
	VibeMode           VibeKind = "mode"
	VibeCharacter      VibeKind = "character"
	VibePetInteraction VibeKind = "pet_interaction"
	VibePetSkin        VibeKind = "pet_skin"
	VibeWellness       VibeKind = "wellness"
)

// VibeKinds lists every known VibeKind.
var VibeKinds = []VibeKind{
	VibeMood, VibeStatus, VibeRitual, VibeMode,
	VibeCharacter, VibePetInteraction, VibePetSkin, VibeWellness,
}

// Valid reports whether k is one of VibeKinds.
func (k VibeKind) Valid() bool {
	for _, known := range VibeKinds {
		if k == known {
			return true
		}
	}
	return false
}

type JoinRoom struct {
	RoomID string
}

type LeaveRoom struct {
	RoomID string
}

// RoomJoined acknowledges a join. Members counts the connections in the room
// after the join, the joiner included.
type RoomJoined struct {
	RoomID  string `json:"roomId"`
	Members int    `json:"members"`
}

type RoomLeft struct {
	RoomID string `json:"roomId"`
}

type ChatMessage struct {
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	ID         string    `json:"id,omitempty"`
}

type Typing struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

// GameAction carries a game move or reset. Board and IsXNext are the
// tic-tac-toe state after the move.
type GameAction struct {
	RoomID   string   `json:"roomId"`
	GameType string   `json:"gameType"`
	Action   string   `json:"action"`
	Board    []string `json:"board,omitempty"`
	IsXNext  *bool    `json:"isXNext,omitempty"`
}

type VibeUpdate struct {
	RoomID string   `json:"roomId"`
	Type   VibeKind `json:"type"`
	Value  any      `json:"value"`
}

// SessionDescription matches the JSON form of RTCSessionDescription.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidateInit matches the JSON form of RTCIceCandidateInit.
type ICECandidateInit struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

type WebRTCOffer struct {
	RoomID string             `json:"roomId"`
	Offer  SessionDescription `json:"offer"`
}

type WebRTCAnswer struct {
	RoomID string             `json:"roomId"`
	Answer SessionDescription `json:"answer"`
}

type WebRTCICECandidate struct {
	RoomID    string           `json:"roomId"`
	Candidate ICECandidateInit `json:"candidate"`
}

type StreamStarted struct {
	RoomID string `json:"roomId"`
}

type StreamStopped struct {
	RoomID string `json:"roomId"`
}

type Ping struct{}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (JoinRoom) Category() Category           { return CategoryJoinRoom }
func (LeaveRoom) Category() Category          { return CategoryLeaveRoom }
func (RoomJoined) Category() Category         { return CategoryRoomJoined }
func (RoomLeft) Category() Category           { return CategoryRoomLeft }
func (ChatMessage) Category() Category        { return CategorySendMessage }
func (Typing) Category() Category             { return CategoryTyping }
func (GameAction) Category() Category         { return CategoryGameAction }
func (VibeUpdate) Category() Category         { return CategoryVibeUpdate }
func (WebRTCOffer) Category() Category        { return CategoryWebRTCOffer }
func (WebRTCAnswer) Category() Category       { return CategoryWebRTCAnswer }
func (WebRTCICECandidate) Category() Category { return CategoryWebRTCICECandidate }
func (StreamStarted) Category() Category      { return CategoryStreamStarted }
func (StreamStopped) Category() Category      { return CategoryStreamStopped }
func (Ping) Category() Category               { return CategoryPing }
func (Pong) Category() Category               { return CategoryPong }

// Encode builds the envelope a client emits for ev.
func Encode(ev Event) (*Message, error) {
	var payload any = ev
	switch e := ev.(type) {
	case JoinRoom:
		payload = e.RoomID
	case LeaveRoom:
		payload = e.RoomID
	case Ping:
		return &Message{Type: CategoryPing}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Category(), err)
	}
	return &Message{Type: ev.Category(), Payload: raw}, nil
}

// Decode parses an envelope into its variant. Both the name a client emits
// and the name the relay delivers under decode to the same variant, so
// receive_message yields a ChatMessage and partner_stop_typing a Typing with
// IsTyping false.
func Decode(m *Message) (Event, error) {
	switch m.Type {
	case CategoryJoinRoom:
		return JoinRoom{RoomID: m.Room()}, nil
	case CategoryLeaveRoom:
		return LeaveRoom{RoomID: m.Room()}, nil
	case CategoryPing:
		return Ping{}, nil
	case CategoryPartnerStopTyping:
		return Typing{RoomID: m.Room(), IsTyping: false}, nil
	}

	var ev Event
	switch m.Type {
	case CategoryRoomJoined:
		ev = &RoomJoined{}
	case CategoryRoomLeft:
		ev = &RoomLeft{}
	case CategorySendMessage, CategoryReceiveMessage:
		ev = &ChatMessage{}
	case CategoryTyping, CategoryPartnerTyping:
		ev = &Typing{}
	case CategoryGameAction, CategoryGameMove:
		ev = &GameAction{}
	case CategoryVibeUpdate, CategoryPartnerVibeChange:
		ev = &VibeUpdate{}
	case CategoryWebRTCOffer:
		ev = &WebRTCOffer{}
	case CategoryWebRTCAnswer:
		ev = &WebRTCAnswer{}
	case CategoryWebRTCICECandidate:
		ev = &WebRTCICECandidate{}
	case CategoryStreamStarted:
		ev = &StreamStarted{}
	case CategoryStreamStopped:
		ev = &StreamStopped{}
	case CategoryPong:
		ev = &Pong{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, m.Type)
	}

	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", m.Type, err)
		}
	}
	return deref(ev), nil
}

func deref(ev Event) Event {
	switch e := ev.(type) {
	case *RoomJoined:
		return *e
	case *RoomLeft:
		return *e
	case *ChatMessage:
		return *e
	case *Typing:
		return *e
	case *GameAction:
		return *e
	case *VibeUpdate:
		return *e
	case *WebRTCOffer:
		return *e
	case *WebRTCAnswer:
		return *e
	case *WebRTCICECandidate:
		return *e
	case *StreamStarted:
		return *e
	case *StreamStopped:
		return *e
	case *Pong:
		return *e
	}
	return ev
}
