package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/psds-microservice/signaling-service/internal/errs"
	"github.com/psds-microservice/signaling-service/internal/model"
	"go.uber.org/zap"
)

// Peer represents one WebSocket connection in the signaling layer.
type Peer struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time
}

func (p *Peer) touch(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.mu.Unlock()
}

func (p *Peer) seen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// trySend enqueues one frame unless the peer's channel is closed or full.
// The closed check and the send share the peer mutex with closeSend, so a
// send can never land on a closed channel.
func (p *Peer) trySend(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.Send <- frame:
		return true
	default:
		return false
	}
}

func (p *Peer) closeSend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.Send)
}

// LectureRecorder persists recording metadata for lectures (optional).
type LectureRecorder interface {
	StartRecording(roomID, lectureID string, at time.Time) (*model.Recording, error)
	StopRecording(roomID string, at time.Time) (*model.Recording, error)
}

// HubConfig holds the knobs the hub needs from service configuration.
type HubConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	SendBuffer      int
}

// SignalingHub dispatches signaling events per connection and wires the
// room registry, connection tracker, rate limiter and signal router to the
// transport. One hub per process.
type SignalingHub struct {
	mu       sync.RWMutex
	peers    map[string]*Peer
	upgrader websocket.Upgrader

	rooms    *RoomRegistry
	tracker  *ConnTracker
	limiter  *RateLimiter
	router   *SignalRouter
	recorder LectureRecorder // optional: lecture/recording metadata store

	cfg HubConfig
	log *zap.Logger
	now func() time.Time
}

// NewSignalingHub creates the hub and its internal signal router.
func NewSignalingHub(cfg HubConfig, rooms *RoomRegistry, tracker *ConnTracker, limiter *RateLimiter, log *zap.Logger) *SignalingHub {
	h := &SignalingHub{
		peers:   make(map[string]*Peer),
		rooms:   rooms,
		tracker: tracker,
		limiter: limiter,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Allow all origins for dev; in prod set CheckOrigin.
		},
	}
	h.router = NewSignalRouter(rooms, h, log)
	return h
}

// SetRecorder sets the optional lecture recording metadata store.
func (h *SignalingHub) SetRecorder(r LectureRecorder) { h.recorder = r }

// Upgrader returns the WebSocket upgrader for HTTP handlers.
func (h *SignalingHub) Upgrader() *websocket.Upgrader {
	return &h.upgrader
}

// Register adds a connection to the hub in the connecting state and returns
// the peer plus a cleanup function for the disconnect path.
func (h *SignalingHub) Register(conn *websocket.Conn) (*Peer, func()) {
	if conn != nil && h.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageSize)
	}
	buf := h.cfg.SendBuffer
	if buf <= 0 {
		buf = 256
	}
	p := &Peer{
		ID:       uuid.New().String(),
		Conn:     conn,
		Send:     make(chan []byte, buf),
		lastSeen: h.now(),
	}
	h.mu.Lock()
	h.peers[p.ID] = p
	h.mu.Unlock()

	h.tracker.Track(p.ID)
	h.log.Info("peer registered", zap.String("conn_id", p.ID))

	cleanup := func() {
		h.unregister(p)
	}
	return p, cleanup
}

// unregister runs the full disconnect path: terminal state, limiter and
// tracker cleanup, room reconciliation, viewer notifications.
func (h *SignalingHub) unregister(p *Peer) {
	h.mu.Lock()
	if _, ok := h.peers[p.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.peers, p.ID)
	h.mu.Unlock()
	p.closeSend()

	h.tracker.SetState(p.ID, StateClosed)
	h.limiter.Forget(p.ID)
	h.tracker.Forget(p.ID)

	torn, left := h.rooms.RemoveConnectionEverywhere(p.ID)
	for _, t := range torn {
		h.finalizeRecording(t)
		for _, v := range t.Viewers {
			h.Send(v, model.EventStreamStopped, model.RoomNotice{
				RoomID:  t.RoomID,
				Message: "broadcaster disconnected",
			})
		}
	}
	for _, l := range left {
		count, _, err := h.roomCount(l.RoomID)
		if err != nil {
			continue
		}
		h.Send(l.Broadcaster, model.EventDisconnectPeer, model.RoomNotice{
			RoomID:      l.RoomID,
			SocketID:    p.ID,
			ViewerCount: count,
		})
	}
	h.log.Info("peer unregistered", zap.String("conn_id", p.ID))
}

func (h *SignalingHub) roomCount(roomID string) (int, string, error) {
	snap, err := h.rooms.SnapshotRoom(roomID)
	if err != nil {
		return 0, "", err
	}
	return snap.ViewerCount, snap.BroadcasterID, nil
}

// Send delivers one event to one connection (implements EventSender).
// Best-effort: unknown peers and full send buffers are logged and dropped,
// never fatal to the dispatch loop.
func (h *SignalingHub) Send(connID, event string, data any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error("marshal outbound event", zap.String("event", event), zap.Error(err))
		return false
	}
	frame, err := json.Marshal(model.Envelope{Event: event, Data: raw})
	if err != nil {
		h.log.Error("marshal envelope", zap.String("event", event), zap.Error(err))
		return false
	}

	h.mu.RLock()
	p, ok := h.peers[connID]
	h.mu.RUnlock()
	if !ok {
		h.log.Warn("send to unknown peer", zap.String("conn_id", connID), zap.String("event", event))
		return false
	}
	if !p.trySend(frame) {
		h.log.Warn("dropping event for peer",
			zap.String("conn_id", connID),
			zap.String("event", event))
		return false
	}
	return true
}

// Dispatch processes one inbound frame from a connection. connection-ready
// transitions the peer to connected and flushes its queue; every other event
// is queued while the peer is not yet connected.
func (h *SignalingHub) Dispatch(connID string, raw []byte) {
	h.mu.RLock()
	p, ok := h.peers[connID]
	h.mu.RUnlock()
	if ok {
		p.touch(h.now())
	}

	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.log.Warn("malformed frame", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if env.Event == model.EventConnectionReady {
		h.tracker.SetState(connID, StateConnected)
		h.tracker.Flush(connID, func(event string, data json.RawMessage) {
			h.handleEvent(connID, event, data)
		})
		return
	}
	if !h.tracker.IsState(connID, StateConnected) {
		// Benign race between transport connect and readiness handshake:
		// queue, don't drop or reject.
		h.tracker.Enqueue(connID, env.Event, env.Data)
		return
	}
	h.handleEvent(connID, env.Event, env.Data)
}

// rateKind folds wire events into limiter buckets.
func rateKind(event string) string {
	switch event {
	case model.EventWebRTCOffer:
		return KindOffer
	case model.EventWebRTCAnswer:
		return KindAnswer
	case model.EventICECandidate:
		return KindCandidate
	case model.EventChatMessage, model.EventAdminChat:
		return KindChat
	case model.EventMicRequest, model.EventUnmuteRequest:
		return KindMicRequest
	default:
		return KindDefault
	}
}

func (h *SignalingHub) handleEvent(connID, event string, data json.RawMessage) {
	kind := rateKind(event)
	if !h.limiter.Allow(connID, kind) {
		h.Send(connID, model.EventRateLimitExceeded, model.RateLimitNotice{
			EventType: kind,
			Message:   fmt.Sprintf("too many %s events, slow down", kind),
		})
		return
	}

	switch event {
	case model.EventCreateRoom:
		h.handleCreateRoom(connID, data)
	case model.EventAdminStart:
		h.handleAdminStart(connID, data)
	case model.EventJoinRoom:
		h.handleJoinRoom(connID, data)
	case model.EventLeaveRoom:
		h.handleLeaveRoom(connID, data)
	case model.EventWebRTCOffer:
		h.handleOffer(connID, data)
	case model.EventWebRTCAnswer:
		h.handleAnswer(connID, data)
	case model.EventICECandidate:
		h.handleCandidate(connID, data)
	case model.EventAdminEnd:
		h.handleAdminEnd(connID, data)
	case model.EventChatMessage:
		h.handleChat(connID, data, false)
	case model.EventAdminChat:
		h.handleChat(connID, data, true)
	case model.EventMicRequest, model.EventUnmuteRequest:
		h.handleMicRequest(connID, event, data)
	case model.EventApproveMic:
		h.handleMicControl(connID, data, model.EventMicApproved)
	case model.EventRejectMic:
		h.handleMicControl(connID, data, model.EventMicRejected)
	case model.EventMuteUserMic:
		h.handleMicControl(connID, data, model.EventMicMuted)
	case model.EventStartRecording:
		h.handleStartRecording(connID, data)
	case model.EventStopRecording:
		h.handleStopRecording(connID, data)
	default:
		h.log.Warn("unknown event", zap.String("conn_id", connID), zap.String("event", event))
	}
}

func (h *SignalingHub) handleCreateRoom(connID string, data json.RawMessage) {
	var req model.RoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad create-room payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	roomID := req.RoomID
	if roomID == "" {
		roomID = generateRoomID(h.now())
	}
	if err := h.rooms.CreateRoom(roomID, connID, nil); err != nil {
		h.Send(connID, model.EventStreamError, model.StreamError{
			Type:    model.StreamErrRoomCreation,
			Message: fmt.Sprintf("room %s already exists", roomID),
		})
		return
	}
	h.Send(connID, model.EventRoomCreated, model.RoomNotice{RoomID: roomID})
}

func (h *SignalingHub) handleAdminStart(connID string, data json.RawMessage) {
	var req model.AdminStartPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad admin-start payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if existing, ok := h.rooms.BroadcasterRoom(connID); ok {
		h.Send(connID, model.EventStreamError, model.StreamError{
			Type:    model.StreamErrAlreadyActive,
			Message: fmt.Sprintf("already broadcasting room %s", existing),
		})
		return
	}
	roomID := req.RoomID
	if roomID == "" {
		roomID = generateRoomID(h.now())
	}
	if err := h.rooms.CreateRoom(roomID, connID, req.StreamInfo); err != nil {
		h.Send(connID, model.EventStreamError, model.StreamError{
			Type:    model.StreamErrStartFailed,
			Message: fmt.Sprintf("room %s already exists", roomID),
		})
		return
	}
	h.Send(connID, model.EventRoomCreated, model.RoomNotice{RoomID: roomID, StreamInfo: req.StreamInfo})
	h.broadcastAll(connID, model.EventStreamStarted, model.RoomNotice{
		RoomID:     roomID,
		StreamInfo: req.StreamInfo,
	})
}

func (h *SignalingHub) handleJoinRoom(connID string, data json.RawMessage) {
	var req model.RoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad join-room payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	count, broadcaster, err := h.rooms.JoinRoom(req.RoomID, connID)
	if err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
		return
	}
	h.Send(broadcaster, model.EventViewerJoin, model.RoomNotice{
		RoomID:      req.RoomID,
		SocketID:    connID,
		ViewerCount: count,
	})
}

func (h *SignalingHub) handleLeaveRoom(connID string, data json.RawMessage) {
	var req model.RoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad leave-room payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	count, broadcaster, removed := h.rooms.LeaveRoom(req.RoomID, connID)
	if !removed {
		return
	}
	h.Send(broadcaster, model.EventViewerLeft, model.RoomNotice{
		RoomID:      req.RoomID,
		SocketID:    connID,
		ViewerCount: count,
	})
}

func (h *SignalingHub) handleOffer(connID string, data json.RawMessage) {
	var req model.OfferPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad offer payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if err := h.router.RouteOffer(connID, req.RoomID, req.TargetViewerID, req.Offer); err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
	}
}

func (h *SignalingHub) handleAnswer(connID string, data json.RawMessage) {
	var req model.AnswerPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad answer payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if err := h.router.RouteAnswer(connID, req.RoomID, req.Answer); err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
	}
}

func (h *SignalingHub) handleCandidate(connID string, data json.RawMessage) {
	var req model.CandidatePayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad candidate payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if err := h.router.RouteICECandidate(connID, req.RoomID, req.TargetViewerID, req.Candidate); err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
	}
}

func (h *SignalingHub) handleAdminEnd(connID string, data json.RawMessage) {
	var req model.RoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad admin-end payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	roomID := req.RoomID
	if roomID == "" {
		if own, ok := h.rooms.BroadcasterRoom(connID); ok {
			roomID = own
		}
	}
	torn, err := h.rooms.EndRoom(roomID, connID)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			h.Send(connID, model.EventStreamError, model.StreamError{
				Type:    model.StreamErrUnauthorized,
				Message: "only the broadcaster can end the stream",
			})
		default:
			h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: roomID})
		}
		return
	}
	h.finalizeRecording(torn)
	for _, v := range torn.Viewers {
		h.Send(v, model.EventStreamStopped, model.RoomNotice{RoomID: roomID, Message: "stream ended"})
	}
	h.Send(connID, model.EventStreamStopped, model.RoomNotice{RoomID: roomID, ViewerCount: len(torn.Viewers)})
}

func (h *SignalingHub) handleChat(connID string, data json.RawMessage, adminOnly bool) {
	var req model.ChatPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad chat payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	snap, err := h.rooms.SnapshotRoom(req.RoomID)
	if err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
		return
	}
	if adminOnly && snap.BroadcasterID != connID {
		h.Send(connID, model.EventStreamError, model.StreamError{
			Type:    model.StreamErrUnauthorized,
			Message: "only the broadcaster can send admin chat",
		})
		return
	}
	h.rooms.Touch(req.RoomID)
	out := model.ForwardedChat{
		RoomID:   req.RoomID,
		SenderID: connID,
		Message:  req.Message,
		UserInfo: req.UserInfo,
	}
	if snap.BroadcasterID != connID {
		h.Send(snap.BroadcasterID, model.EventChatMessage, out)
	}
	for _, v := range snap.Viewers {
		if v != connID {
			h.Send(v, model.EventChatMessage, out)
		}
	}
}

func (h *SignalingHub) handleMicRequest(connID, event string, data json.RawMessage) {
	var req model.MicPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad mic payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	broadcaster, err := h.rooms.Broadcaster(req.RoomID)
	if err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
		return
	}
	h.rooms.Touch(req.RoomID)
	h.Send(broadcaster, event, model.ForwardedMic{
		RoomID:   req.RoomID,
		SenderID: connID,
		Data:     req.Data,
	})
}

// handleMicControl routes broadcaster-only mic decisions to the target viewer.
func (h *SignalingHub) handleMicControl(connID string, data json.RawMessage, outEvent string) {
	var req model.MicPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad mic payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	broadcaster, err := h.rooms.Broadcaster(req.RoomID)
	if err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
		return
	}
	if broadcaster != connID {
		h.Send(connID, model.EventStreamError, model.StreamError{
			Type:    model.StreamErrUnauthorized,
			Message: "only the broadcaster can manage microphones",
		})
		return
	}
	h.rooms.Touch(req.RoomID)
	h.Send(req.TargetSocketID, outEvent, model.ForwardedMic{
		RoomID:   req.RoomID,
		SenderID: connID,
		Data:     req.Data,
	})
}

func (h *SignalingHub) handleStartRecording(connID string, data json.RawMessage) {
	var req model.RecordingPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad recording payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	broadcaster, err := h.rooms.Broadcaster(req.RoomID)
	if err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
		return
	}
	if broadcaster != connID {
		h.Send(connID, model.EventStreamError, model.StreamError{
			Type:    model.StreamErrUnauthorized,
			Message: "only the broadcaster can start recording",
		})
		return
	}
	now := h.now()
	if err := h.rooms.SetRecording(req.RoomID, req.LectureID, now); err != nil {
		h.Send(connID, model.EventStreamError, model.StreamError{
			Type:    model.StreamErrStartFailed,
			Message: "recording already active",
		})
		return
	}
	if h.recorder != nil {
		if _, err := h.recorder.StartRecording(req.RoomID, req.LectureID, now); err != nil {
			_, _, _ = h.rooms.ClearRecording(req.RoomID)
			h.Send(connID, model.EventStreamError, model.StreamError{
				Type:    model.StreamErrStartFailed,
				Message: "could not persist recording metadata",
			})
			return
		}
	}
	h.broadcastRoom(req.RoomID, "", model.EventRecordingStarted, model.RecordingNotice{
		RoomID:    req.RoomID,
		LectureID: req.LectureID,
		StartTime: now.Unix(),
	})
}

func (h *SignalingHub) handleStopRecording(connID string, data json.RawMessage) {
	var req model.RecordingPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("bad recording payload", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	broadcaster, err := h.rooms.Broadcaster(req.RoomID)
	if err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
		return
	}
	if broadcaster != connID {
		h.Send(connID, model.EventStreamError, model.StreamError{
			Type:    model.StreamErrUnauthorized,
			Message: "only the broadcaster can stop recording",
		})
		return
	}
	lectureID, since, err := h.rooms.ClearRecording(req.RoomID)
	if err != nil {
		h.Send(connID, model.EventStreamNotFound, model.RoomNotice{RoomID: req.RoomID})
		return
	}
	now := h.now()
	if h.recorder != nil {
		if _, err := h.recorder.StopRecording(req.RoomID, now); err != nil {
			h.log.Warn("stop recording metadata failed",
				zap.String("room_id", req.RoomID), zap.Error(err))
		}
	}
	var duration int64
	if !since.IsZero() {
		duration = int64(now.Sub(since).Seconds())
	}
	h.broadcastRoom(req.RoomID, "", model.EventRecordingStopped, model.RecordingNotice{
		RoomID:          req.RoomID,
		LectureID:       lectureID,
		DurationSeconds: duration,
	})
}

// finalizeRecording closes recording metadata for a room already removed from
// the registry. Teardown paths call it with the torn-down state so the stop
// only happens once the removal has actually been authorized and applied.
func (h *SignalingHub) finalizeRecording(t TornRoom) {
	if h.recorder == nil || !t.Recording {
		return
	}
	if _, err := h.recorder.StopRecording(t.RoomID, h.now()); err != nil {
		h.log.Warn("finalize recording on teardown failed",
			zap.String("room_id", t.RoomID), zap.Error(err))
	}
}

// broadcastRoom sends an event to the broadcaster and every viewer of a room,
// except the excluded connection.
func (h *SignalingHub) broadcastRoom(roomID, exclude, event string, data any) {
	snap, err := h.rooms.SnapshotRoom(roomID)
	if err != nil {
		return
	}
	if snap.BroadcasterID != "" && snap.BroadcasterID != exclude {
		h.Send(snap.BroadcasterID, event, data)
	}
	for _, v := range snap.Viewers {
		if v != exclude {
			h.Send(v, event, data)
		}
	}
}

// broadcastAll sends an event to every connected peer except the sender.
func (h *SignalingHub) broadcastAll(exclude, event string, data any) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.peers))
	for id := range h.peers {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.Send(id, event, data)
	}
}

// IdleConnIDs returns connections with no inbound activity for longer than
// the threshold.
func (h *SignalingHub) IdleConnIDs(olderThan time.Duration) []string {
	now := h.now()
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ids []string
	for id, p := range h.peers {
		if now.Sub(p.seen()) > olderThan {
			ids = append(ids, id)
		}
	}
	return ids
}

// ForceDisconnect closes the peer's transport. The read pump then exits and
// runs the normal disconnect cleanup path.
func (h *SignalingHub) ForceDisconnect(connID string) {
	h.mu.RLock()
	p, ok := h.peers[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if p.Conn != nil {
		_ = p.Conn.Close()
		return
	}
	// No transport (tests): run cleanup directly.
	h.unregister(p)
}

// NotifyStreamStopped informs viewers of a room torn down by the reaper.
func (h *SignalingHub) NotifyStreamStopped(t TornRoom, reason string) {
	h.finalizeRecording(t)
	for _, v := range t.Viewers {
		h.Send(v, model.EventStreamStopped, model.RoomNotice{RoomID: t.RoomID, Message: reason})
	}
	if t.Broadcaster != "" {
		h.Send(t.Broadcaster, model.EventStreamStopped, model.RoomNotice{RoomID: t.RoomID, Message: reason})
	}
}

// ConnectionCount returns the number of registered peers.
func (h *SignalingHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Stats returns coordinator counters for the REST surface and reaper summary.
func (h *SignalingHub) Stats() model.StatsSnapshot {
	rooms, viewers := h.rooms.Counts()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return model.StatsSnapshot{
		Connections:   h.ConnectionCount(),
		Rooms:         rooms,
		Viewers:       viewers,
		PendingQueues: h.tracker.PendingQueues(),
		HeapAllocMB:   ms.HeapAlloc / (1 << 20),
	}
}

// Shutdown closes every connection and drains hub state. Rooms are torn down
// through the normal unregister path as connections close.
func (h *SignalingHub) Shutdown() {
	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		if p.Conn != nil {
			_ = p.Conn.Close()
		}
		h.unregister(p)
	}
	h.log.Info("hub shut down", zap.Int("peers_closed", len(peers)))
}

func generateRoomID(now time.Time) string {
	return fmt.Sprintf("room-%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}
