package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/psds-microservice/signaling-service/internal/errs"
	"github.com/psds-microservice/signaling-service/internal/model"
	"go.uber.org/zap"
)

// room is the registry-owned state of one broadcast. Connections are only
// referenced by id; a connection may vanish at any time and is reconciled out
// of every room by RemoveConnectionEverywhere.
type room struct {
	id             string
	broadcaster    string
	viewers        map[string]struct{}
	createdAt      time.Time
	lastActivity   time.Time
	streamInfo     json.RawMessage
	recording      bool
	recordingSince time.Time
	lectureID      string
}

// TornRoom describes one room removed by a forced teardown, with the viewer
// set at the moment of teardown so the caller can notify each one.
type TornRoom struct {
	RoomID      string
	Broadcaster string
	Viewers     []string
	Recording   bool
}

// RoomRegistry owns all live rooms. Every method is safe for concurrent use;
// join/leave racing a broadcaster teardown on the same room is a real hazard
// here, unlike on a single-threaded runtime.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	log   *zap.Logger
	now   func() time.Time
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry(log *zap.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*room),
		log:   log,
		now:   time.Now,
	}
}

// CreateRoom inserts a room owned by the broadcaster.
func (r *RoomRegistry) CreateRoom(roomID, broadcasterID string, streamInfo json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; ok {
		return errs.ErrDuplicateRoom
	}
	now := r.now()
	r.rooms[roomID] = &room{
		id:           roomID,
		broadcaster:  broadcasterID,
		viewers:      make(map[string]struct{}),
		createdAt:    now,
		lastActivity: now,
		streamInfo:   streamInfo,
	}
	r.log.Info("room created",
		zap.String("room_id", roomID),
		zap.String("broadcaster_id", broadcasterID))
	return nil
}

// JoinRoom adds a viewer and returns the new viewer count plus the
// broadcaster id for notification. A broadcaster joining its own room is a
// counted no-op, never a viewer-set entry.
func (r *RoomRegistry) JoinRoom(roomID, viewerID string) (count int, broadcasterID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return 0, "", errs.ErrRoomNotFound
	}
	if viewerID != rm.broadcaster {
		rm.viewers[viewerID] = struct{}{}
	}
	rm.lastActivity = r.now()
	return len(rm.viewers), rm.broadcaster, nil
}

// LeaveRoom removes a viewer. Idempotent: unknown room or viewer is a no-op.
func (r *RoomRegistry) LeaveRoom(roomID, viewerID string) (count int, broadcasterID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return 0, "", false
	}
	if _, in := rm.viewers[viewerID]; !in {
		return len(rm.viewers), rm.broadcaster, false
	}
	delete(rm.viewers, viewerID)
	rm.lastActivity = r.now()
	return len(rm.viewers), rm.broadcaster, true
}

// EndRoom removes the room if the requester is its broadcaster and returns
// the torn-down state for notification. Unauthorized or unknown-room requests
// change nothing.
func (r *RoomRegistry) EndRoom(roomID, requesterID string) (TornRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return TornRoom{}, errs.ErrRoomNotFound
	}
	if rm.broadcaster != requesterID {
		return TornRoom{}, errs.ErrUnauthorized
	}
	delete(r.rooms, roomID)
	r.log.Info("room ended",
		zap.String("room_id", roomID),
		zap.Int("viewers", len(rm.viewers)))
	return TornRoom{RoomID: roomID, Broadcaster: rm.broadcaster, Viewers: viewerIDs(rm), Recording: rm.recording}, nil
}

// RemoveConnectionEverywhere reconciles a gone connection out of the
// registry: rooms it broadcast are torn down (authorization bypassed, this is
// forced), rooms it viewed lose the viewer. Returns torn-down rooms and the
// rooms left as a viewer.
func (r *RoomRegistry) RemoveConnectionEverywhere(connID string) (torn []TornRoom, left []TornRoom) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rm := range r.rooms {
		if rm.broadcaster == connID {
			delete(r.rooms, id)
			torn = append(torn, TornRoom{RoomID: id, Broadcaster: connID, Viewers: viewerIDs(rm), Recording: rm.recording})
			continue
		}
		if _, in := rm.viewers[connID]; in {
			delete(rm.viewers, connID)
			rm.lastActivity = r.now()
			left = append(left, TornRoom{RoomID: id, Broadcaster: rm.broadcaster, Viewers: []string{connID}})
		}
	}
	if len(torn) > 0 {
		r.log.Info("broadcaster removed, rooms torn down",
			zap.String("conn_id", connID),
			zap.Int("rooms", len(torn)))
	}
	return torn, left
}

// Broadcaster returns the broadcaster id of a room.
func (r *RoomRegistry) Broadcaster(roomID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return "", errs.ErrRoomNotFound
	}
	return rm.broadcaster, nil
}

// HasViewer reports whether the viewer is in the room's viewer set.
func (r *RoomRegistry) HasViewer(roomID, viewerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, in := rm.viewers[viewerID]
	return in
}

// BroadcasterRoom returns the id of the room the connection broadcasts, if any.
func (r *RoomRegistry) BroadcasterRoom(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, rm := range r.rooms {
		if rm.broadcaster == connID {
			return id, true
		}
	}
	return "", false
}

// Touch bumps the room's last-activity timestamp.
func (r *RoomRegistry) Touch(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[roomID]; ok {
		rm.lastActivity = r.now()
	}
}

// SetRecording marks the room as recording a lecture.
func (r *RoomRegistry) SetRecording(roomID, lectureID string, since time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return errs.ErrRoomNotFound
	}
	if rm.recording {
		return errs.ErrRecordingActive
	}
	rm.recording = true
	rm.recordingSince = since
	rm.lectureID = lectureID
	rm.lastActivity = r.now()
	return nil
}

// ClearRecording clears the room's recording sub-state and returns the
// lecture it was recording.
func (r *RoomRegistry) ClearRecording(roomID string) (lectureID string, since time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return "", time.Time{}, errs.ErrRoomNotFound
	}
	lectureID, since = rm.lectureID, rm.recordingSince
	rm.recording = false
	rm.recordingSince = time.Time{}
	rm.lectureID = ""
	rm.lastActivity = r.now()
	return lectureID, since, nil
}

// EvictIdle removes rooms whose last activity is older than the threshold and
// returns them for teardown notification, same contract as EndRoom.
func (r *RoomRegistry) EvictIdle(threshold time.Duration) []TornRoom {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var torn []TornRoom
	for id, rm := range r.rooms {
		if now.Sub(rm.lastActivity) > threshold {
			delete(r.rooms, id)
			torn = append(torn, TornRoom{RoomID: id, Broadcaster: rm.broadcaster, Viewers: viewerIDs(rm), Recording: rm.recording})
			r.log.Info("idle room evicted",
				zap.String("room_id", id),
				zap.Duration("idle", now.Sub(rm.lastActivity)))
		}
	}
	return torn
}

// EvictOrphans removes rooms with no viewers and no broadcaster. Such rooms
// cannot be ended by anyone and would otherwise leak.
func (r *RoomRegistry) EvictOrphans() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, rm := range r.rooms {
		if rm.broadcaster == "" && len(rm.viewers) == 0 {
			delete(r.rooms, id)
			n++
		}
	}
	return n
}

// Counts returns the number of rooms and total viewers across rooms.
func (r *RoomRegistry) Counts() (rooms, viewers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rm := range r.rooms {
		viewers += len(rm.viewers)
	}
	return len(r.rooms), viewers
}

// Snapshot returns API views of all rooms.
func (r *RoomRegistry) Snapshot() []model.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.RoomSnapshot, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, snapshotOf(rm))
	}
	return out
}

// SnapshotRoom returns the API view of one room.
func (r *RoomRegistry) SnapshotRoom(roomID string) (model.RoomSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return model.RoomSnapshot{}, errs.ErrRoomNotFound
	}
	return snapshotOf(rm), nil
}

func snapshotOf(rm *room) model.RoomSnapshot {
	s := model.RoomSnapshot{
		ID:            rm.id,
		BroadcasterID: rm.broadcaster,
		ViewerCount:   len(rm.viewers),
		Viewers:       viewerIDs(rm),
		CreatedAt:     rm.createdAt,
		LastActivity:  rm.lastActivity,
		Recording:     rm.recording,
		LectureID:     rm.lectureID,
	}
	if rm.recording {
		since := rm.recordingSince
		s.RecordingSince = &since
	}
	return s
}

func viewerIDs(rm *room) []string {
	ids := make([]string, 0, len(rm.viewers))
	for id := range rm.viewers {
		ids = append(ids, id)
	}
	return ids
}
