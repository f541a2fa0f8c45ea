package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/signaling-service/internal/handler"
	"github.com/psds-microservice/signaling-service/internal/router"
	"github.com/psds-microservice/signaling-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (http.Handler, *service.RoomRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	rooms := service.NewRoomRegistry(log)
	tracker := service.NewConnTracker(log)
	limiter := service.NewRateLimiter(60*time.Second, nil, 30)
	hub := service.NewSignalingHub(service.HubConfig{}, rooms, tracker, limiter, log)

	roomHandler := handler.NewRoomHandler(hub, rooms, service.NewLectureService(nil), "wss://stream.example.com")
	signalWS := handler.NewSignalWSHandler(hub, log)
	health := handler.NewHealthHandler()
	return router.New(roomHandler, signalWS, health), rooms
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, doGet(t, h, "/health").Code)
	assert.Equal(t, http.StatusOK, doGet(t, h, "/ready").Code)
}

func TestListRooms(t *testing.T) {
	h, rooms := newTestServer(t)
	require.NoError(t, rooms.CreateRoom("r1", "b1", nil))
	_, _, err := rooms.JoinRoom("r1", "v1")
	require.NoError(t, err)

	rec := doGet(t, h, "/rooms")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rooms []struct {
			ID          string `json:"id"`
			ViewerCount int    `json:"viewer_count"`
		} `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rooms, 1)
	assert.Equal(t, "r1", body.Rooms[0].ID)
	assert.Equal(t, 1, body.Rooms[0].ViewerCount)
}

func TestGetRoom(t *testing.T) {
	h, rooms := newTestServer(t)
	require.NoError(t, rooms.CreateRoom("r1", "b1", nil))

	rec := doGet(t, h, "/rooms/r1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		WSURL string `json:"ws_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "wss://stream.example.com/ws/signal", body.WSURL)

	assert.Equal(t, http.StatusNotFound, doGet(t, h, "/rooms/unknown").Code)
}

func TestGetStats(t *testing.T) {
	h, rooms := newTestServer(t)
	require.NoError(t, rooms.CreateRoom("r1", "b1", nil))

	rec := doGet(t, h, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Rooms       int `json:"rooms"`
		Connections int `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Rooms)
	assert.Equal(t, 0, body.Connections)
}
