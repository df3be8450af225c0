package protocol

import "encoding/json"

// Category is the event name of an envelope.
type Category string

// Client -> relay categories.
const (
	CategoryJoinRoom           Category = "join_room"
	CategoryLeaveRoom          Category = "leave_room"
	CategorySendMessage        Category = "send_message"
	CategoryTyping             Category = "typing"
	CategoryGameAction         Category = "game_action"
	CategoryVibeUpdate         Category = "vibe_update"
	CategoryWebRTCOffer        Category = "webrtc_offer"
	CategoryWebRTCAnswer       Category = "webrtc_answer"
	CategoryWebRTCICECandidate Category = "webrtc_ice_candidate"
	CategoryStreamStarted      Category = "stream_started"
	CategoryStreamStopped      Category = "stream_stopped"
	CategoryPing               Category = "ping"
)

// Relay -> client categories.
const (
	CategoryRoomJoined        Category = "room_joined"
	CategoryRoomLeft          Category = "room_left"
	CategoryReceiveMessage    Category = "receive_message"
	CategoryPartnerTyping     Category = "partner_typing"
	CategoryPartnerStopTyping Category = "partner_stop_typing"
	CategoryGameMove          Category = "game_move"
	CategoryPartnerVibeChange Category = "partner_vibe_change"
	CategoryPong              Category = "pong"
)

// relayed maps every fan-out category to the name receivers see. typing is
// absent because its outbound name depends on the payload.
var relayed = map[Category]Category{
	CategorySendMessage:        CategoryReceiveMessage,
	CategoryGameAction:         CategoryGameMove,
	CategoryVibeUpdate:         CategoryPartnerVibeChange,
	CategoryWebRTCOffer:        CategoryWebRTCOffer,
	CategoryWebRTCAnswer:       CategoryWebRTCAnswer,
	CategoryWebRTCICECandidate: CategoryWebRTCICECandidate,
	CategoryStreamStarted:      CategoryStreamStarted,
	CategoryStreamStopped:      CategoryStreamStopped,
}

// IsLocal reports whether the relay handles c itself instead of fanning it out.
func IsLocal(c Category) bool {
	switch c {
	case CategoryJoinRoom, CategoryLeaveRoom, CategoryPing:
		return true
	}
	return false
}

// Route resolves the category an inbound envelope is delivered under. ok is
// false for local and unknown categories.
func Route(in Category, payload json.RawMessage) (out Category, ok bool) {
	if in == CategoryTyping {
		if IsTyping(payload) {
			return CategoryPartnerTyping, true
		}
		return CategoryPartnerStopTyping, true
	}
	out, ok = relayed[in]
	return out, ok
}

// IsTyping reads the isTyping flag of a typing payload. Anything unreadable
// counts as not typing.
func IsTyping(payload json.RawMessage) bool {
	var peek struct {
		IsTyping bool `json:"isTyping"`
	}
	if err := json.Unmarshal(payload, &peek); err != nil {
		return false
	}
	return peek.IsTyping
}
