package service

import "time"

// ServiceOption настраивает сервис при создании
type ServiceOption func(*DeadlineService)

// WithClock подменяет источник текущего времени, от него считается "сегодня"
func WithClock(now func() time.Time) ServiceOption {
	return func(s *DeadlineService) {
		s.now = now
	}
}

func WithRepoName(name string) ServiceOption {
	return func(s *DeadlineService) {
		s.repoName = name
	}
}
