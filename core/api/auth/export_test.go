package auth

import "time"

func (s *Service) SetTimeNow(f func() time.Time) {
	s.nowFn = f
}
