package service

import (
	"encoding/json"

	"github.com/psds-microservice/signaling-service/internal/model"
	"go.uber.org/zap"
)

// EventSender delivers one event to one connection. Delivery is best-effort:
// the return value reports whether the connection was known and had send
// buffer room, and callers treat false as a logged non-error.
type EventSender interface {
	Send(connID, event string, data any) bool
}

// SignalRouter relays WebRTC offers, answers and ICE candidates between a
// room's broadcaster and its viewers. Payloads are opaque blobs; the router
// never interprets SDP or candidate contents.
//
// Offers and broadcaster ICE candidates addressed to a viewer that is not
// (yet) in the room's viewer set are still delivered, with a warning. A join
// may not be fully processed when the first offer for that viewer arrives;
// failing closed would drop the offer and stall negotiation.
type SignalRouter struct {
	rooms *RoomRegistry
	send  EventSender
	log   *zap.Logger
}

// NewSignalRouter creates a router over the registry and sender.
func NewSignalRouter(rooms *RoomRegistry, send EventSender, log *zap.Logger) *SignalRouter {
	return &SignalRouter{rooms: rooms, send: send, log: log}
}

// RouteOffer delivers a webrtc-offer to the target viewer.
func (r *SignalRouter) RouteOffer(fromID, roomID, targetViewerID string, offer json.RawMessage) error {
	if _, err := r.rooms.Broadcaster(roomID); err != nil {
		return err
	}
	if !r.rooms.HasViewer(roomID, targetViewerID) {
		r.log.Warn("offer target not in room, delivering anyway",
			zap.String("room_id", roomID),
			zap.String("target_id", targetViewerID))
	}
	r.rooms.Touch(roomID)
	r.send.Send(targetViewerID, model.EventWebRTCOffer, model.ForwardedOffer{
		RoomID: roomID,
		Offer:  offer,
	})
	return nil
}

// RouteAnswer delivers a webrtc-answer to the room's broadcaster, tagged with
// the sending viewer.
func (r *SignalRouter) RouteAnswer(fromID, roomID string, answer json.RawMessage) error {
	broadcaster, err := r.rooms.Broadcaster(roomID)
	if err != nil {
		return err
	}
	r.rooms.Touch(roomID)
	r.send.Send(broadcaster, model.EventWebRTCAnswer, model.ForwardedAnswer{
		RoomID:   roomID,
		SenderID: fromID,
		Answer:   answer,
	})
	return nil
}

// RouteICECandidate delivers an ice-candidate. From the broadcaster it goes
// to the target viewer (same permissive policy as offers); from a viewer it
// goes to the broadcaster tagged with the sender.
func (r *SignalRouter) RouteICECandidate(fromID, roomID, targetViewerID string, candidate json.RawMessage) error {
	broadcaster, err := r.rooms.Broadcaster(roomID)
	if err != nil {
		return err
	}
	r.rooms.Touch(roomID)

	if fromID == broadcaster {
		if !r.rooms.HasViewer(roomID, targetViewerID) {
			r.log.Warn("candidate target not in room, delivering anyway",
				zap.String("room_id", roomID),
				zap.String("target_id", targetViewerID))
		}
		r.send.Send(targetViewerID, model.EventICECandidate, model.ForwardedCandidate{
			RoomID:    roomID,
			Candidate: candidate,
		})
		return nil
	}
	r.send.Send(broadcaster, model.EventICECandidate, model.ForwardedCandidate{
		RoomID:    roomID,
		SenderID:  fromID,
		Candidate: candidate,
	})
	return nil
}
