package service

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// ReaperConfig holds sweep thresholds.
type ReaperConfig struct {
	Interval           time.Duration
	RoomIdleTimeout    time.Duration
	ConnIdleTimeout    time.Duration
	LimiterIdleTimeout time.Duration
	QueueMaxAge        time.Duration
	HeapCeilingMB      int
}

// reaperHub is the slice of the hub the reaper needs.
type reaperHub interface {
	IdleConnIDs(olderThan time.Duration) []string
	ForceDisconnect(connID string)
	NotifyStreamStopped(t TornRoom, reason string)
	ConnectionCount() int
}

// Reaper periodically evicts idle connections, idle rooms and stale
// rate-limit and signal-queue entries. One reaper per process; Start and
// Stop bracket its goroutine.
type Reaper struct {
	cfg     ReaperConfig
	rooms   *RoomRegistry
	limiter *RateLimiter
	tracker *ConnTracker
	hub     reaperHub
	log     *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewReaper creates a reaper over the shared maps.
func NewReaper(cfg ReaperConfig, rooms *RoomRegistry, limiter *RateLimiter, tracker *ConnTracker, hub reaperHub, log *zap.Logger) *Reaper {
	return &Reaper{
		cfg:     cfg,
		rooms:   rooms,
		limiter: limiter,
		tracker: tracker,
		hub:     hub,
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reaper) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}

// Sweep runs one full eviction pass. Exported so tests drive it without
// timers. A panic in any branch is swallowed; the reaper is advisory and
// must never take the dispatch loop down with it.
func (r *Reaper) Sweep() {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("reaper sweep panicked", zap.Any("panic", rec))
		}
	}()

	staleLimits := r.limiter.SweepIdle(r.cfg.LimiterIdleTimeout)
	staleQueues := r.tracker.SweepQueues(r.cfg.QueueMaxAge)
	orphans := r.rooms.EvictOrphans()

	idleRooms := r.rooms.EvictIdle(r.cfg.RoomIdleTimeout)
	for _, t := range idleRooms {
		r.hub.NotifyStreamStopped(t, "stream closed due to inactivity")
	}

	idleConns := r.hub.IdleConnIDs(r.cfg.ConnIdleTimeout)
	for _, id := range idleConns {
		r.log.Info("evicting idle connection", zap.String("conn_id", id))
		r.hub.ForceDisconnect(id)
	}

	r.checkMemoryPressure()

	rooms, viewers := r.rooms.Counts()
	r.log.Info("reaper sweep",
		zap.Int("connections", r.hub.ConnectionCount()),
		zap.Int("rooms", rooms),
		zap.Int("viewers", viewers),
		zap.Int("stale_limits", staleLimits),
		zap.Int("stale_queues", staleQueues),
		zap.Int("orphan_rooms", orphans),
		zap.Int("idle_rooms", len(idleRooms)),
		zap.Int("idle_conns", len(idleConns)))
}

// checkMemoryPressure trims the oldest rate-limit bookkeeping and asks the
// runtime to collect when the heap exceeds the configured ceiling.
func (r *Reaper) checkMemoryPressure() {
	if r.cfg.HeapCeilingMB <= 0 {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heapMB := ms.HeapAlloc / (1 << 20)
	if heapMB <= uint64(r.cfg.HeapCeilingMB) {
		return
	}
	trimmed := r.limiter.TrimOldest(r.limiter.Size() / 2)
	r.log.Warn("heap above ceiling, trimming",
		zap.Uint64("heap_mb", heapMB),
		zap.Int("ceiling_mb", r.cfg.HeapCeilingMB),
		zap.Int("limit_entries_trimmed", trimmed))
	runtime.GC()
}
