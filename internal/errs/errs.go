package errs

import "errors"

// Доменные сентинель-ошибки для маппинга в wire-уведомления в hub и HTTP коды в handlers.
var (
	ErrDuplicateRoom   = errors.New("room already exists")
	ErrRoomNotFound    = errors.New("room not found")
	ErrUnauthorized    = errors.New("not the room broadcaster")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrLectureNotFound = errors.New("lecture not found")
	ErrRecordingActive = errors.New("recording already active for room")
)
