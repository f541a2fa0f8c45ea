package service

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/signaling-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *SignalingHub {
	log := zap.NewNop()
	rooms := NewRoomRegistry(log)
	tracker := NewConnTracker(log)
	limiter := NewRateLimiter(60*time.Second, map[string]int{
		KindOffer:      10,
		KindAnswer:     10,
		KindCandidate:  50,
		KindChat:       20,
		KindMicRequest: 5,
	}, 30)
	return NewSignalingHub(HubConfig{SendBuffer: 64}, rooms, tracker, limiter, log)
}

// sendEvent pushes one inbound frame through the hub as the connection.
func sendEvent(t *testing.T, h *SignalingHub, connID, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(model.Envelope{Event: event, Data: data})
	require.NoError(t, err)
	h.Dispatch(connID, frame)
}

// drain empties the peer's send channel into decoded envelopes.
func drain(t *testing.T, p *Peer) []model.Envelope {
	t.Helper()
	var out []model.Envelope
	for {
		select {
		case raw, ok := <-p.Send:
			if !ok {
				return out
			}
			var env model.Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventsOf(envs []model.Envelope, event string) []model.Envelope {
	var out []model.Envelope
	for _, e := range envs {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func ready(t *testing.T, h *SignalingHub, p *Peer) {
	t.Helper()
	sendEvent(t, h, p.ID, model.EventConnectionReady, struct{}{})
}

func TestOfferDeliveredToViewer(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)

	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)
	drain(t, v)

	sendEvent(t, h, b.ID, model.EventWebRTCOffer, model.OfferPayload{
		RoomID:         "r1",
		TargetViewerID: v.ID,
		Offer:          json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})

	got := drain(t, v)
	require.Len(t, got, 1, "viewer receives exactly one event")
	assert.Equal(t, model.EventWebRTCOffer, got[0].Event)
	var fwd model.ForwardedOffer
	require.NoError(t, json.Unmarshal(got[0].Data, &fwd))
	assert.Equal(t, "r1", fwd.RoomID)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(fwd.Offer))
}

func TestEleventhOfferRateLimited(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)
	drain(t, v)

	for i := 0; i < 11; i++ {
		sendEvent(t, h, b.ID, model.EventWebRTCOffer, model.OfferPayload{
			RoomID:         "r1",
			TargetViewerID: v.ID,
			Offer:          json.RawMessage(`{"sdp":"x"}`),
		})
	}

	assert.Len(t, eventsOf(drain(t, v), model.EventWebRTCOffer), 10, "only 10 offers forwarded")

	rejected := eventsOf(drain(t, b), model.EventRateLimitExceeded)
	require.Len(t, rejected, 1)
	var notice model.RateLimitNotice
	require.NoError(t, json.Unmarshal(rejected[0].Data, &notice))
	assert.Equal(t, "offer", notice.EventType)
}

func TestBroadcasterDisconnectTeardown(t *testing.T) {
	h := newTestHub()
	b, closeB := h.Register(nil)
	v1, _ := h.Register(nil)
	v2, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v1)
	ready(t, h, v2)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v1.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v2.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, v1)
	drain(t, v2)

	closeB()

	require.Len(t, eventsOf(drain(t, v1), model.EventStreamStopped), 1)
	require.Len(t, eventsOf(drain(t, v2), model.EventStreamStopped), 1)

	v3, _ := h.Register(nil)
	ready(t, h, v3)
	sendEvent(t, h, v3.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	assert.Len(t, eventsOf(drain(t, v3), model.EventStreamNotFound), 1)
}

func TestSignalBeforeReadyIsQueued(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)

	// Viewer has not sent connection-ready yet: the candidate is queued,
	// not dropped.
	sendEvent(t, h, v.ID, model.EventICECandidate, model.CandidatePayload{
		RoomID:    "r1",
		Candidate: json.RawMessage(`{"candidate":"cand"}`),
	})
	assert.Empty(t, drain(t, b), "nothing delivered before readiness")

	ready(t, h, v)

	got := eventsOf(drain(t, b), model.EventICECandidate)
	require.Len(t, got, 1, "queued candidate delivered exactly once")
	var fwd model.ForwardedCandidate
	require.NoError(t, json.Unmarshal(got[0].Data, &fwd))
	assert.Equal(t, v.ID, fwd.SenderID)
	assert.JSONEq(t, `{"candidate":"cand"}`, string(fwd.Candidate))
}

func TestAdminStartAlreadyActive(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	ready(t, h, b)

	sendEvent(t, h, b.ID, model.EventAdminStart, model.AdminStartPayload{RoomID: "r1"})
	require.Len(t, eventsOf(drain(t, b), model.EventRoomCreated), 1)

	sendEvent(t, h, b.ID, model.EventAdminStart, model.AdminStartPayload{RoomID: "r2"})
	errsOut := eventsOf(drain(t, b), model.EventStreamError)
	require.Len(t, errsOut, 1)
	var se model.StreamError
	require.NoError(t, json.Unmarshal(errsOut[0].Data, &se))
	assert.Equal(t, model.StreamErrAlreadyActive, se.Type)
}

func TestAdminStartAnnouncesStream(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	other, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, other)

	sendEvent(t, h, b.ID, model.EventAdminStart, model.AdminStartPayload{
		RoomID:     "r1",
		StreamInfo: json.RawMessage(`{"title":"intro"}`),
	})
	started := eventsOf(drain(t, other), model.EventStreamStarted)
	require.Len(t, started, 1)
	var notice model.RoomNotice
	require.NoError(t, json.Unmarshal(started[0].Data, &notice))
	assert.Equal(t, "r1", notice.RoomID)
}

func TestAdminEndUnauthorized(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, v)

	sendEvent(t, h, v.ID, model.EventAdminEnd, model.RoomRequest{RoomID: "r1"})
	errsOut := eventsOf(drain(t, v), model.EventStreamError)
	require.Len(t, errsOut, 1)
	var se model.StreamError
	require.NoError(t, json.Unmarshal(errsOut[0].Data, &se))
	assert.Equal(t, model.StreamErrUnauthorized, se.Type)
}

func TestAdminEndNotifiesViewers(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)
	drain(t, v)

	sendEvent(t, h, b.ID, model.EventAdminEnd, model.RoomRequest{RoomID: "r1"})
	assert.Len(t, eventsOf(drain(t, v), model.EventStreamStopped), 1)
	assert.Len(t, eventsOf(drain(t, b), model.EventStreamStopped), 1)
}

func TestChatBroadcastExcludesSender(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v1, _ := h.Register(nil)
	v2, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v1)
	ready(t, h, v2)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v1.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v2.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)
	drain(t, v1)
	drain(t, v2)

	sendEvent(t, h, v1.ID, model.EventChatMessage, model.ChatPayload{RoomID: "r1", Message: "hi"})

	assert.Len(t, eventsOf(drain(t, b), model.EventChatMessage), 1)
	assert.Len(t, eventsOf(drain(t, v2), model.EventChatMessage), 1)
	assert.Empty(t, eventsOf(drain(t, v1), model.EventChatMessage))
}

func TestAdminChatBroadcasterOnly(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)
	drain(t, v)

	sendEvent(t, h, v.ID, model.EventAdminChat, model.ChatPayload{RoomID: "r1", Message: "nope"})
	require.Len(t, eventsOf(drain(t, v), model.EventStreamError), 1)
	assert.Empty(t, eventsOf(drain(t, b), model.EventChatMessage))
}

func TestMicRequestAndApproval(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)
	drain(t, v)

	sendEvent(t, h, v.ID, model.EventMicRequest, model.MicPayload{RoomID: "r1"})
	reqs := eventsOf(drain(t, b), model.EventMicRequest)
	require.Len(t, reqs, 1)
	var mic model.ForwardedMic
	require.NoError(t, json.Unmarshal(reqs[0].Data, &mic))
	assert.Equal(t, v.ID, mic.SenderID)

	sendEvent(t, h, b.ID, model.EventApproveMic, model.MicPayload{RoomID: "r1", TargetSocketID: v.ID})
	assert.Len(t, eventsOf(drain(t, v), model.EventMicApproved), 1)

	// A viewer cannot issue mic decisions.
	sendEvent(t, h, v.ID, model.EventApproveMic, model.MicPayload{RoomID: "r1", TargetSocketID: b.ID})
	assert.Len(t, eventsOf(drain(t, v), model.EventStreamError), 1)
}

func TestViewerDisconnectNotifiesBroadcaster(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, closeV := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)

	closeV()

	gone := eventsOf(drain(t, b), model.EventDisconnectPeer)
	require.Len(t, gone, 1)
	var notice model.RoomNotice
	require.NoError(t, json.Unmarshal(gone[0].Data, &notice))
	assert.Equal(t, v.ID, notice.SocketID)
	assert.Equal(t, 0, notice.ViewerCount)
}

type fakeRecorder struct {
	started []string
	stopped []string
}

func (f *fakeRecorder) StartRecording(roomID, lectureID string, at time.Time) (*model.Recording, error) {
	f.started = append(f.started, roomID+"/"+lectureID)
	return &model.Recording{RoomID: roomID, LectureID: lectureID, StartedAt: at}, nil
}

func (f *fakeRecorder) StopRecording(roomID string, at time.Time) (*model.Recording, error) {
	f.stopped = append(f.stopped, roomID)
	return &model.Recording{RoomID: roomID}, nil
}

func TestRecordingLifecycle(t *testing.T) {
	h := newTestHub()
	rec := &fakeRecorder{}
	h.SetRecorder(rec)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	h.rooms.now = h.now

	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, b)
	drain(t, v)

	sendEvent(t, h, b.ID, model.EventStartRecording, model.RecordingPayload{RoomID: "r1", LectureID: "lec1"})
	require.Len(t, eventsOf(drain(t, v), model.EventRecordingStarted), 1)
	require.Equal(t, []string{"r1/lec1"}, rec.started)

	now = now.Add(90 * time.Second)
	sendEvent(t, h, b.ID, model.EventStopRecording, model.RecordingPayload{RoomID: "r1"})
	stoppedEvts := eventsOf(drain(t, v), model.EventRecordingStopped)
	require.Len(t, stoppedEvts, 1)
	var notice model.RecordingNotice
	require.NoError(t, json.Unmarshal(stoppedEvts[0].Data, &notice))
	assert.Equal(t, "lec1", notice.LectureID)
	assert.Equal(t, int64(90), notice.DurationSeconds)
	assert.Equal(t, []string{"r1"}, rec.stopped)
}

func TestAdminEndUnauthorizedLeavesRecordingActive(t *testing.T) {
	h := newTestHub()
	rec := &fakeRecorder{}
	h.SetRecorder(rec)
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, b.ID, model.EventStartRecording, model.RecordingPayload{RoomID: "r1", LectureID: "lec1"})
	drain(t, b)
	drain(t, v)

	sendEvent(t, h, v.ID, model.EventAdminEnd, model.RoomRequest{RoomID: "r1"})
	require.Len(t, eventsOf(drain(t, v), model.EventStreamError), 1)

	// The rejected request must not have touched the recording metadata.
	assert.Empty(t, rec.stopped)
	snap, err := h.rooms.SnapshotRoom("r1")
	require.NoError(t, err)
	assert.True(t, snap.Recording)

	// The broadcaster's end still finalizes it exactly once.
	sendEvent(t, h, b.ID, model.EventAdminEnd, model.RoomRequest{RoomID: "r1"})
	assert.Equal(t, []string{"r1"}, rec.stopped)
}

func TestRecordingViewerUnauthorized(t *testing.T) {
	h := newTestHub()
	h.SetRecorder(&fakeRecorder{})
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})
	drain(t, v)

	sendEvent(t, h, v.ID, model.EventStartRecording, model.RecordingPayload{RoomID: "r1", LectureID: "lec1"})
	require.Len(t, eventsOf(drain(t, v), model.EventStreamError), 1)
}

func TestSendAfterDisconnectIsDropped(t *testing.T) {
	h := newTestHub()
	p, cleanup := h.Register(nil)
	cleanup()

	// The peer's channel is closed; a late frame is dropped, never a panic.
	assert.False(t, p.trySend([]byte(`{}`)))
	assert.False(t, h.Send(p.ID, model.EventStreamStopped, model.RoomNotice{RoomID: "r1"}))
}

func TestConcurrentSendDuringDisconnect(t *testing.T) {
	h := newTestHub()
	for i := 0; i < 200; i++ {
		v, closeV := h.Register(nil)
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.Send(v.ID, model.EventViewerJoin, model.RoomNotice{RoomID: "r1"})
			}()
		}
		closeV()
		wg.Wait()
	}
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestShutdownDrains(t *testing.T) {
	h := newTestHub()
	b, _ := h.Register(nil)
	v, _ := h.Register(nil)
	ready(t, h, b)
	ready(t, h, v)
	sendEvent(t, h, b.ID, model.EventCreateRoom, model.RoomRequest{RoomID: "r1"})
	sendEvent(t, h, v.ID, model.EventJoinRoom, model.RoomRequest{RoomID: "r1"})

	h.Shutdown()

	assert.Equal(t, 0, h.ConnectionCount())
	rooms, viewers := h.rooms.Counts()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, viewers)
}
