package model

import "encoding/json"

// Envelope is the wire frame for every signaling event, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventConnectionReady = "connection-ready"
	EventCreateRoom      = "create-room"
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventWebRTCOffer     = "webrtc-offer"
	EventWebRTCAnswer    = "webrtc-answer"
	EventICECandidate    = "ice-candidate"
	EventAdminStart      = "admin-start"
	EventAdminEnd        = "admin-end"
	EventChatMessage     = "chat-message"
	EventAdminChat       = "admin-chat"
	EventMicRequest      = "mic-request"
	EventUnmuteRequest   = "unmute-request"
	EventApproveMic      = "approve-mic"
	EventRejectMic       = "reject-mic"
	EventMuteUserMic     = "mute-user-mic"
	EventStartRecording  = "admin-start-recording"
	EventStopRecording   = "admin-stop-recording"
)

// Outbound event names.
const (
	EventRoomCreated       = "room-created"
	EventStreamStarted     = "stream-started"
	EventStreamStopped     = "stream-stopped"
	EventStreamNotFound    = "stream-not-found"
	EventStreamError       = "stream-error"
	EventViewerJoin        = "viewer-join"
	EventViewerLeft        = "viewer-left"
	EventDisconnectPeer    = "disconnect-peer"
	EventRateLimitExceeded = "rate-limit-exceeded"
	EventRecordingStarted  = "recording-started"
	EventRecordingStopped  = "recording-stopped"
	EventMicApproved       = "mic-approved"
	EventMicRejected       = "mic-rejected"
	EventMicMuted          = "mic-muted"
)

// Stream error discriminators for EventStreamError.
const (
	StreamErrAlreadyActive = "already-active"
	StreamErrUnauthorized  = "unauthorized"
	StreamErrRoomCreation  = "room-creation-failed"
	StreamErrStartFailed   = "start-failed"
)

// RoomRequest covers create-room / join-room / leave-room / admin-end.
type RoomRequest struct {
	RoomID   string `json:"roomId"`
	ViewerID string `json:"viewerId,omitempty"`
}

// OfferPayload is an inbound webrtc-offer: opaque SDP blob addressed to one viewer.
type OfferPayload struct {
	RoomID         string          `json:"roomId"`
	TargetViewerID string          `json:"targetViewerId"`
	Offer          json.RawMessage `json:"offer"`
}

// AnswerPayload is an inbound webrtc-answer from a viewer to the room broadcaster.
type AnswerPayload struct {
	RoomID string          `json:"roomId"`
	Answer json.RawMessage `json:"answer"`
}

// CandidatePayload is an inbound ice-candidate. TargetViewerID is only
// meaningful when the sender is the broadcaster.
type CandidatePayload struct {
	RoomID         string          `json:"roomId"`
	TargetViewerID string          `json:"targetViewerId,omitempty"`
	Candidate      json.RawMessage `json:"candidate"`
}

// AdminStartPayload starts a stream; RoomID optional (generated when empty).
type AdminStartPayload struct {
	RoomID     string          `json:"roomId,omitempty"`
	StreamInfo json.RawMessage `json:"streamInfo,omitempty"`
}

// ChatPayload covers chat-message and admin-chat.
type ChatPayload struct {
	RoomID   string          `json:"roomId"`
	Message  string          `json:"message"`
	UserInfo json.RawMessage `json:"userInfo,omitempty"`
}

// MicPayload covers mic-request / unmute-request / approve-mic / reject-mic / mute-user-mic.
type MicPayload struct {
	RoomID         string          `json:"roomId"`
	TargetSocketID string          `json:"targetSocketId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// RecordingPayload covers admin-start-recording / admin-stop-recording.
type RecordingPayload struct {
	RoomID    string `json:"roomId"`
	LectureID string `json:"lectureId"`
}

// Outbound payloads.

// ForwardedOffer is delivered to a viewer.
type ForwardedOffer struct {
	RoomID string          `json:"roomId"`
	Offer  json.RawMessage `json:"offer"`
}

// ForwardedAnswer is delivered to the broadcaster, tagged with the sender.
type ForwardedAnswer struct {
	RoomID   string          `json:"roomId"`
	SenderID string          `json:"senderId"`
	Answer   json.RawMessage `json:"answer"`
}

// ForwardedCandidate is delivered to the broadcaster or a viewer.
type ForwardedCandidate struct {
	RoomID    string          `json:"roomId"`
	SenderID  string          `json:"senderId,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

// ForwardedChat is a chat message relayed to the room.
type ForwardedChat struct {
	RoomID   string          `json:"roomId"`
	SenderID string          `json:"senderId"`
	Message  string          `json:"message"`
	UserInfo json.RawMessage `json:"userInfo,omitempty"`
}

// ForwardedMic is a mic request or decision relayed to one connection.
type ForwardedMic struct {
	RoomID   string          `json:"roomId"`
	SenderID string          `json:"senderId"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// RoomNotice carries room lifecycle notifications.
type RoomNotice struct {
	RoomID      string          `json:"roomId"`
	SocketID    string          `json:"socketId,omitempty"`
	ViewerCount int             `json:"viewerCount,omitempty"`
	StreamInfo  json.RawMessage `json:"streamInfo,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// StreamError is sent to broadcasters on failed admin actions.
type StreamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RateLimitNotice reports a rejected event kind back to the sender.
type RateLimitNotice struct {
	EventType string `json:"eventType"`
	Message   string `json:"message"`
}

// RecordingNotice reports recording lifecycle to the room.
type RecordingNotice struct {
	RoomID          string `json:"roomId"`
	LectureID       string `json:"lectureId"`
	StartTime       int64  `json:"startTime,omitempty"`
	DurationSeconds int64  `json:"duration,omitempty"`
}
