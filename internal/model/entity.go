package model

import "time"

// Lecture — лекция, к которой привязываются записи трансляций (GORM).
type Lecture struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title     string    `gorm:"size:255;not null"`
	Course    string    `gorm:"size:255;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Recordings []Recording `gorm:"foreignKey:LectureID"`
}

func (Lecture) TableName() string { return "lectures" }

// Recording status values.
const (
	RecordingStatusActive   = "active"
	RecordingStatusFinished = "finished"
)

// Recording — запись одной трансляции лекции (GORM).
type Recording struct {
	ID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LectureID       string     `gorm:"type:uuid;not null;index"`
	RoomID          string     `gorm:"size:64;not null;index"`
	Status          string     `gorm:"size:20;not null;default:active"` // active, finished
	StartedAt       time.Time  `gorm:"column:started_at;not null"`
	StoppedAt       *time.Time `gorm:"column:stopped_at"`
	DurationSeconds int64      `gorm:"column:duration_seconds;not null;default:0"`
}

func (Recording) TableName() string { return "recordings" }

// RecordingView is the API response DTO for GET /lectures/:id/recordings.
type RecordingView struct {
	ID              string     `json:"id"`
	RoomID          string     `json:"room_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	StoppedAt       *time.Time `json:"stopped_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
}
