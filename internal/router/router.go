package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/signaling-service/internal/handler"
	"github.com/psds-microservice/signaling-service/pkg/constants"
)

// New builds the HTTP router.
func New(
	roomHandler *handler.RoomHandler,
	signalWS *handler.SignalWSHandler,
	health *handler.HealthHandler,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)

	// Read-only admin API over live signaling state
	r.GET("/rooms", roomHandler.ListRooms)
	r.GET("/rooms/:id", roomHandler.GetRoom)
	r.GET("/stats", roomHandler.GetStats)
	r.GET("/lectures/:id/recordings", roomHandler.ListLectureRecordings)

	// WebSocket: /ws/signal
	r.GET(constants.PathWS, signalWS.ServeWS)

	return r
}
