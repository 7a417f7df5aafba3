package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Wire format, both directions: {"event": "<name>", "data": {...}}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound event names. This set is closed: DecodeInbound rejects anything
// not listed here, and the dispatcher in core.go covers every kind.
const (
	evJoinRoom       = "joinRoom"
	evLeaveRoom      = "leaveRoom"
	evChatMessage    = "chat:message"
	evChatTyping     = "chat:typing"
	evChatStopTyping = "chat:stopTyping"

	evDirectJoin       = "direct:join"
	evDirectLeave      = "direct:leave"
	evDirectMessage    = "direct:message"
	evDirectTyping     = "direct:typing"
	evDirectStopTyping = "direct:stopTyping"

	evCallInitiate     = "video:call:initiate"
	evCallAccept       = "video:call:accept"
	evCallReject       = "video:call:reject"
	evCallEnd          = "video:call:end"
	evCallOffer        = "video:call:offer"
	evCallAnswer       = "video:call:answer"
	evCallICECandidate = "video:call:ice-candidate"
	evCallStatus       = "video:call:status"
)

// Outbound event names.
const (
	evUserJoined = "userJoined"
	evUserLeft   = "userLeft"
	evRoomUsers  = "roomUsers"

	evCallIncoming  = "video:call:incoming"
	evCallAccepted  = "video:call:accepted"
	evCallRejected  = "video:call:rejected"
	evCallCancelled = "video:call:cancelled"
	evCallEnded     = "video:call:ended"
	evCallError     = "video:call:error"
)

// Inbound is the closed union of decoded client events.
type Inbound interface{ inboundEvent() }

type JoinRoom struct {
	RoomID int `json:"roomId"`
	UserID int `json:"userId"`
}

type LeaveRoom struct {
	RoomID int `json:"roomId"`
	UserID int `json:"userId"`
}

type ChatMessage struct {
	RoomID   int     `json:"roomId"`
	Content  string  `json:"content"`
	FileURL  *string `json:"fileUrl,omitempty"`
	FileName *string `json:"fileName,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
}

type ChatTyping struct {
	RoomID int `json:"roomId"`
}

type ChatStopTyping struct {
	RoomID int `json:"roomId"`
}

type DirectJoin struct {
	ConversationID int `json:"conversationId"`
}

type DirectLeave struct {
	ConversationID int `json:"conversationId"`
}

type DirectMessage struct {
	ConversationID int     `json:"conversationId"`
	Content        string  `json:"content"`
	FileURL        *string `json:"fileUrl,omitempty"`
	FileName       *string `json:"fileName,omitempty"`
	MimeType       *string `json:"mimeType,omitempty"`
}

type DirectTyping struct {
	ConversationID int `json:"conversationId"`
}

type DirectStopTyping struct {
	ConversationID int `json:"conversationId"`
}

type CallInitiate struct {
	ConversationID int `json:"conversationId"`
	ParticipantID  int `json:"participantId"`
}

type CallAccept struct {
	VideoCallID string `json:"videoCallId"`
}

type CallReject struct {
	VideoCallID string `json:"videoCallId"`
}

type CallEnd struct {
	VideoCallID string `json:"videoCallId"`
}

type CallOffer struct {
	VideoCallID string                    `json:"videoCallId"`
	Offer       webrtc.SessionDescription `json:"offer"`
}

type CallAnswer struct {
	VideoCallID string                    `json:"videoCallId"`
	Answer      webrtc.SessionDescription `json:"answer"`
}

type CallICECandidate struct {
	VideoCallID string                  `json:"videoCallId"`
	Candidate   webrtc.ICECandidateInit `json:"candidate"`
}

type CallStatusUpdate struct {
	VideoCallID string `json:"videoCallId"`
	Status      string `json:"status"`
}

func (*JoinRoom) inboundEvent()         {}
func (*LeaveRoom) inboundEvent()        {}
func (*ChatMessage) inboundEvent()      {}
func (*ChatTyping) inboundEvent()       {}
func (*ChatStopTyping) inboundEvent()   {}
func (*DirectJoin) inboundEvent()       {}
func (*DirectLeave) inboundEvent()      {}
func (*DirectMessage) inboundEvent()    {}
func (*DirectTyping) inboundEvent()     {}
func (*DirectStopTyping) inboundEvent() {}
func (*CallInitiate) inboundEvent()     {}
func (*CallAccept) inboundEvent()       {}
func (*CallReject) inboundEvent()       {}
func (*CallEnd) inboundEvent()          {}
func (*CallOffer) inboundEvent()        {}
func (*CallAnswer) inboundEvent()       {}
func (*CallICECandidate) inboundEvent() {}
func (*CallStatusUpdate) inboundEvent() {}

var inboundDecoders = map[string]func() Inbound{
	evJoinRoom:         func() Inbound { return &JoinRoom{} },
	evLeaveRoom:        func() Inbound { return &LeaveRoom{} },
	evChatMessage:      func() Inbound { return &ChatMessage{} },
	evChatTyping:       func() Inbound { return &ChatTyping{} },
	evChatStopTyping:   func() Inbound { return &ChatStopTyping{} },
	evDirectJoin:       func() Inbound { return &DirectJoin{} },
	evDirectLeave:      func() Inbound { return &DirectLeave{} },
	evDirectMessage:    func() Inbound { return &DirectMessage{} },
	evDirectTyping:     func() Inbound { return &DirectTyping{} },
	evDirectStopTyping: func() Inbound { return &DirectStopTyping{} },
	evCallInitiate:     func() Inbound { return &CallInitiate{} },
	evCallAccept:       func() Inbound { return &CallAccept{} },
	evCallReject:       func() Inbound { return &CallReject{} },
	evCallEnd:          func() Inbound { return &CallEnd{} },
	evCallOffer:        func() Inbound { return &CallOffer{} },
	evCallAnswer:       func() Inbound { return &CallAnswer{} },
	evCallICECandidate: func() Inbound { return &CallICECandidate{} },
	evCallStatus:       func() Inbound { return &CallStatusUpdate{} },
}

// DecodeInbound parses one wire frame into its typed event.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	newEvent, ok := inboundDecoders[env.Event]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
	ev := newEvent()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
	}
	return ev, nil
}

// encodeOutbound builds a wire frame. Payloads are server-constructed, so
// a marshal failure is a programming error; it is reported as nil and the
// caller drops the frame.
func encodeOutbound(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	frame, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		return nil
	}
	return frame
}
