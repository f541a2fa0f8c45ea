package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/signaling-service/internal/errs"
	"github.com/psds-microservice/signaling-service/internal/service"
)

// RoomHandler exposes the read-only admin API over live rooms and recordings.
type RoomHandler struct {
	hub      *service.SignalingHub
	rooms    *service.RoomRegistry
	lectures *service.LectureService
	ws       *service.WSConfig
}

// NewRoomHandler creates a room handler.
func NewRoomHandler(hub *service.SignalingHub, rooms *service.RoomRegistry, lectures *service.LectureService, wsBaseURL string) *RoomHandler {
	return &RoomHandler{
		hub:      hub,
		rooms:    rooms,
		lectures: lectures,
		ws:       &service.WSConfig{BaseURL: wsBaseURL},
	}
}

// ListRooms godoc
// GET /rooms
func (h *RoomHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.rooms.Snapshot()})
}

// GetRoom godoc
// GET /rooms/:id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id required"})
		return
	}
	snap, err := h.rooms.SnapshotRoom(roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": snap, "ws_url": h.ws.WSURL()})
}

// GetStats godoc
// GET /stats
func (h *RoomHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

// ListLectureRecordings godoc
// GET /lectures/:id/recordings
func (h *RoomHandler) ListLectureRecordings(c *gin.Context) {
	lectureID := c.Param("id")
	if lectureID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lecture id required"})
		return
	}
	recordings, err := h.lectures.ListRecordings(lectureID)
	if err != nil {
		if errors.Is(err, errs.ErrLectureNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lecture not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recordings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lecture_id": lectureID, "recordings": recordings})
}
