package constants

// Пути health, ready и WebSocket-сигналинга (остальные API — через handler).
const (
	PathHealth = "/health"
	PathReady  = "/ready"
	PathWS     = "/ws/signal"
)
