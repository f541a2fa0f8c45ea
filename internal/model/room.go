package model

import "time"

// RoomSnapshot is the API view of a live room (not owned by the registry caller).
type RoomSnapshot struct {
	ID             string     `json:"id"`
	BroadcasterID  string     `json:"broadcaster_id"`
	ViewerCount    int        `json:"viewer_count"`
	Viewers        []string   `json:"viewers,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivity   time.Time  `json:"last_activity"`
	Recording      bool       `json:"recording"`
	RecordingSince *time.Time `json:"recording_since,omitempty"`
	LectureID      string     `json:"lecture_id,omitempty"`
}

// StatsSnapshot is the API view of coordinator counters (GET /stats).
type StatsSnapshot struct {
	Connections   int    `json:"connections"`
	Rooms         int    `json:"rooms"`
	Viewers       int    `json:"viewers"`
	PendingQueues int    `json:"pending_queues"`
	HeapAllocMB   uint64 `json:"heap_alloc_mb"`
}
