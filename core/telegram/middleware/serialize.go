package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

// senderLocks hands out one mutex per sender. An entry lives only while some
// update of that sender holds or waits for it, so the map stays small.
type senderLocks struct {
	mu    sync.Mutex
	locks map[int64]*senderLock
}

type senderLock struct {
	sync.Mutex
	refs int
}

func (s *senderLocks) acquire(userID int64) *senderLock {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &senderLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return l
}

func (s *senderLocks) release(userID int64, l *senderLock) {
	l.Unlock()
	s.mu.Lock()
	if l.refs--; l.refs == 0 {
		delete(s.locks, userID)
	}
	s.mu.Unlock()
}

func (s *senderLocks) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// SerializeMiddleware runs the updates of one sender one at a time. Updates
// from different senders still run concurrently. Updates without a sender
// pass straight through.
func SerializeMiddleware() tele.MiddlewareFunc {
	s := &senderLocks{locks: make(map[int64]*senderLock)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			l := s.acquire(user.ID)
			defer s.release(user.ID, l)
			return next(c)
		}
	}
}
