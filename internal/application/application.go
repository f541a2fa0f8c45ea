package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/psds-microservice/signaling-service/internal/config"
	"github.com/psds-microservice/signaling-service/internal/database"
	"github.com/psds-microservice/signaling-service/internal/handler"
	"github.com/psds-microservice/signaling-service/internal/router"
	"github.com/psds-microservice/signaling-service/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API is the HTTP + WebSocket signaling application.
type API struct {
	cfg    *config.Config
	srv    *http.Server
	db     *gorm.DB
	hub    *service.SignalingHub
	reaper *service.Reaper
}

// NewAPI creates the API application: validates config, runs migrations,
// opens DB, builds the signaling coordinator and router.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	rooms := service.NewRoomRegistry(logger)
	tracker := service.NewConnTracker(logger)
	limiter := service.NewRateLimiter(cfg.RateWindow, map[string]int{
		service.KindOffer:      cfg.MaxOffers,
		service.KindAnswer:     cfg.MaxAnswers,
		service.KindCandidate:  cfg.MaxICECandidates,
		service.KindChat:       cfg.MaxChatMessages,
		service.KindMicRequest: cfg.MaxMicRequests,
	}, cfg.MaxDefaultEvents)

	hub := service.NewSignalingHub(service.HubConfig{
		ReadBufferSize:  cfg.WSReadBufferSize,
		WriteBufferSize: cfg.WSWriteBufferSize,
		MaxMessageSize:  cfg.WSMaxMessageSize,
		SendBuffer:      cfg.WSSendBuffer,
	}, rooms, tracker, limiter, logger)

	lectures := service.NewLectureService(db)
	hub.SetRecorder(lectures)

	reaper := service.NewReaper(service.ReaperConfig{
		Interval:           cfg.ReaperInterval,
		RoomIdleTimeout:    cfg.RoomIdleTimeout,
		ConnIdleTimeout:    cfg.ConnIdleTimeout,
		LimiterIdleTimeout: cfg.LimiterIdleTimeout,
		QueueMaxAge:        cfg.QueueMaxAge,
		HeapCeilingMB:      cfg.HeapCeilingMB,
	}, rooms, limiter, tracker, hub, logger)

	roomHandler := handler.NewRoomHandler(hub, rooms, lectures, cfg.WSBaseURL)
	signalWS := handler.NewSignalWSHandler(hub, logger)
	health := handler.NewHealthHandler()

	r := router.New(roomHandler, signalWS, health)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, db: db, hub: hub, reaper: reaper}, nil
}

// Run starts the HTTP server and the reaper, blocks until ctx is cancelled,
// then shuts down gracefully: reaper stopped, hub drained, server closed.
func (a *API) Run(ctx context.Context) error {
	addr := a.srv.Addr
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", addr)
	log.Printf("  Health:        %s/health", base)
	log.Printf("  Ready:         %s/ready", base)
	log.Printf("  Rooms:         %s/rooms", base)
	log.Printf("  Stats:         %s/stats", base)
	log.Printf("  WebSocket:     ws://%s:%s/ws/signal", host, a.cfg.HTTPPort)

	a.reaper.Start()

	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	a.reaper.Stop()
	a.hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
