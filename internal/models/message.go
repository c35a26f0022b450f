package models

import "encoding/json"

// Event names exchanged over the signaling socket. These are the wire
// strings, shared with the browser client.
const (
	// client -> server
	EventJoinRoom        = "join room"
	EventSendingSignal   = "sending signal"
	EventReturningSignal = "returning signal"
	EventSendMessage     = "send message"
	EventSendTranslation = "send translation"

	// server -> client
	EventAllUsers           = "all users"
	EventRoomFull           = "room full"
	EventUserJoined         = "user joined"
	EventReturnedSignal     = "receiving returned signal"
	EventReceiveMessage     = "receive message"
	EventReceiveTranslation = "receive translation"
	EventUserLeft           = "user left"
)

// Envelope is the framing for every signaling message. Data holds the
// event-specific payload and stays unparsed until the event is dispatched.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an Envelope for the given event.
func NewEnvelope(event string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// SendingSignal carries a connection offer from a newly joined participant
// to one pre-existing member. Signal is an opaque blob produced by the peer
// connection library; the server never parses it.
type SendingSignal struct {
	UserToSignal string          `json:"userToSignal"`
	CallerID     string          `json:"callerID"`
	Signal       json.RawMessage `json:"signal"`
}

// UserJoined delivers an offer to its addressed peer.
type UserJoined struct {
	Signal   json.RawMessage `json:"signal"`
	CallerID string          `json:"callerID"`
}

// ReturningSignal carries an answer back to the offer's originator.
type ReturningSignal struct {
	Signal   json.RawMessage `json:"signal"`
	CallerID string          `json:"callerID"`
}

// ReturnedSignal delivers an answer to the offer originator. ID is the
// answering participant.
type ReturnedSignal struct {
	Signal json.RawMessage `json:"signal"`
	ID     string          `json:"id"`
}

// ChatMessage is the in-call chat payload.
type ChatMessage struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// Translation is the live-caption payload: the recognized source text and
// its Telugu translation.
type Translation struct {
	Translation string `json:"translation"`
	Telugu      string `json:"telugu"`
	Sender      string `json:"sender"`
}
