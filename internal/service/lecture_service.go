package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/signaling-service/internal/errs"
	"github.com/psds-microservice/signaling-service/internal/model"
	"gorm.io/gorm"
)

// LectureService persists lecture and recording metadata. The signaling core
// only stamps ids and timestamps; recorded media lives elsewhere.
type LectureService struct {
	db *gorm.DB
}

// NewLectureService creates a lecture service.
func NewLectureService(db *gorm.DB) *LectureService {
	return &LectureService{db: db}
}

// CreateLecture creates a lecture.
func (s *LectureService) CreateLecture(title, course string) (*model.Lecture, error) {
	ent := &model.Lecture{
		ID:     uuid.New().String(),
		Title:  title,
		Course: course,
	}
	if err := s.db.Create(ent).Error; err != nil {
		return nil, err
	}
	return ent, nil
}

// GetLecture returns a lecture by ID.
func (s *LectureService) GetLecture(lectureID string) (*model.Lecture, error) {
	var ent model.Lecture
	if err := s.db.Where("id = ?", lectureID).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrLectureNotFound
		}
		return nil, err
	}
	return &ent, nil
}

// StartRecording opens recording metadata for a room against a lecture.
func (s *LectureService) StartRecording(roomID, lectureID string, at time.Time) (*model.Recording, error) {
	var lecture model.Lecture
	if err := s.db.Where("id = ?", lectureID).First(&lecture).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrLectureNotFound
		}
		return nil, err
	}
	var active int64
	if err := s.db.Model(&model.Recording{}).
		Where("room_id = ? AND status = ?", roomID, model.RecordingStatusActive).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, errs.ErrRecordingActive
	}
	ent := &model.Recording{
		ID:        uuid.New().String(),
		LectureID: lectureID,
		RoomID:    roomID,
		Status:    model.RecordingStatusActive,
		StartedAt: at,
	}
	if err := s.db.Create(ent).Error; err != nil {
		return nil, err
	}
	return ent, nil
}

// StopRecording finalizes the active recording for a room and stamps its
// duration.
func (s *LectureService) StopRecording(roomID string, at time.Time) (*model.Recording, error) {
	var ent model.Recording
	err := s.db.Where("room_id = ? AND status = ?", roomID, model.RecordingStatusActive).
		Order("started_at DESC").First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrRoomNotFound
		}
		return nil, err
	}
	duration := int64(at.Sub(ent.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	if err := s.db.Model(&ent).Updates(map[string]interface{}{
		"status":           model.RecordingStatusFinished,
		"stopped_at":       at,
		"duration_seconds": duration,
	}).Error; err != nil {
		return nil, err
	}
	ent.Status = model.RecordingStatusFinished
	ent.StoppedAt = &at
	ent.DurationSeconds = duration
	return &ent, nil
}

// ListRecordings returns recordings for a lecture, newest first.
func (s *LectureService) ListRecordings(lectureID string) ([]model.RecordingView, error) {
	var lecture model.Lecture
	if err := s.db.Where("id = ?", lectureID).First(&lecture).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrLectureNotFound
		}
		return nil, err
	}
	var ents []model.Recording
	if err := s.db.Where("lecture_id = ?", lectureID).
		Order("started_at DESC").Find(&ents).Error; err != nil {
		return nil, err
	}
	out := make([]model.RecordingView, 0, len(ents))
	for _, e := range ents {
		out = append(out, model.RecordingView{
			ID:              e.ID,
			RoomID:          e.RoomID,
			Status:          e.Status,
			StartedAt:       e.StartedAt,
			StoppedAt:       e.StoppedAt,
			DurationSeconds: e.DurationSeconds,
		})
	}
	return out, nil
}
