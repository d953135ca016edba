package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-collections/collections/queue"
	"github.com/google/uuid"

	"kvconsole/console"
	"kvconsole/store"
)

const sessionCookie = "kvconsole_session"

// session is one browser's console. Flash notices are queued by actions and
// drained by the next render.
type session struct {
	ID   string
	Page *console.Page

	mu       sync.Mutex
	flashes  *queue.Queue
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = now
}

func (s *session) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return now.Sub(s.lastSeen)
}

func (s *session) Flash(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flashes.Enqueue(msg)
}

func (s *session) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for s.flashes.Len() > 0 {
		out = append(out, s.flashes.Dequeue().(string))
	}

	return out
}

// sessionFor looks up the caller's session, starting a new one when the
// cookie is missing, unknown or expired.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session {
	now := s.Now()
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, err := s.sessions.Get(c.Value); err == nil {
			sess.touch(now)
			return sess
		}
	}

	sess := &session{
		ID:       uuid.NewString(),
		Page:     console.NewPage(s.api),
		flashes:  queue.New(),
		lastSeen: now,
	}
	if err := s.sessions.Put(sess.ID, sess); err != nil {
		log.Errorf("Unable to store session %s: %v", sess.ID, err)
	}
	log.Debugf("Started session %s", sess.ID)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return sess
}

// ExpireSessions drops sessions idle for longer than maxIdle and returns
// how many were dropped.
func (s *Server) ExpireSessions(maxIdle time.Duration) int {
	now := s.Now()
	expired := 0

	err := s.sessions.Scan(func(id string, sess *session) error {
		if sess.idle(now) <= maxIdle {
			return nil
		}
		if err := s.sessions.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		expired++
		return nil
	})
	if err != nil {
		log.Errorf("Expiring sessions failed: %v", err)
	}

	if expired > 0 {
		left, _ := s.sessions.Count()
		log.Debugf("Expired %d idle sessions, %d left", expired, left)
	}

	return expired
}

// SweepSessions runs ExpireSessions every interval until ctx is done.
func (s *Server) SweepSessions(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireSessions(maxIdle)
		}
	}
}
