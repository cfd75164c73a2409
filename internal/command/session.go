package command

import (
	"sync"
	"time"

	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"

	"go.uber.org/zap"
)

type Mode string

const (
	ModeViewing          Mode = "viewing"
	ModeConfirmingDelete Mode = "confirming-delete"
)

// Session - состояние диалога одного пользователя
type Session struct {
	mu sync.Mutex

	ID         string
	Filter     string
	Mode       Mode
	Candidates []*deadline.Deadline
}

func NewSession(id string) *Session {
	return &Session{
		ID:   id,
		Mode: ModeViewing,
	}
}

func (s *Session) toViewing() {
	s.Mode = ModeViewing
	s.Candidates = nil
}

func (s *Session) candidate(id int64) (*deadline.Deadline, bool) {
	for _, c := range s.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultMaxSessions = 10000
)

// SessionStore хранит сессии по ключу: id HTTP-сессии или чата.
// Простаивающие дольше ttl удаляются, а при переполнении вытесняется самая старая.
type SessionStore struct {
	mtx         sync.Mutex
	sessions    map[string]*storedSession
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
	lastSweep   time.Time
}

type storedSession struct {
	session  *Session
	lastUsed time.Time
}

type StoreOption func(*SessionStore)

// WithIdleTTL задаёт время простоя; ноль и меньше отключают вытеснение по времени
func WithIdleTTL(ttl time.Duration) StoreOption {
	return func(st *SessionStore) {
		st.ttl = ttl
	}
}

// WithMaxSessions ограничивает число сессий; ноль и меньше снимают ограничение
func WithMaxSessions(n int) StoreOption {
	return func(st *SessionStore) {
		st.maxSessions = n
	}
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(st *SessionStore) {
		st.now = now
	}
}

func NewSessionStore(opts ...StoreOption) *SessionStore {
	st := &SessionStore{
		sessions:    make(map[string]*storedSession),
		ttl:         DefaultIdleTTL,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(st)
	}
	st.lastSweep = st.now()
	return st
}

// Get возвращает сессию, создавая её при первом обращении
func (st *SessionStore) Get(id string) *Session {
	st.mtx.Lock()
	defer st.mtx.Unlock()

	now := st.now()
	st.sweepLocked(now)

	if stored, ok := st.sessions[id]; ok {
		stored.lastUsed = now
		return stored.session
	}

	if st.maxSessions > 0 && len(st.sessions) >= st.maxSessions {
		st.evictOldestLocked()
	}
	s := NewSession(id)
	st.sessions[id] = &storedSession{session: s, lastUsed: now}
	return s
}

// sweepLocked удаляет простаивающие сессии не чаще раза в ttl/4
func (st *SessionStore) sweepLocked(now time.Time) {
	if st.ttl <= 0 || now.Sub(st.lastSweep) < st.ttl/4 {
		return
	}
	st.lastSweep = now
	for id, stored := range st.sessions {
		if now.Sub(stored.lastUsed) > st.ttl {
			delete(st.sessions, id)
		}
	}
}

func (st *SessionStore) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
		found    bool
	)
	for id, stored := range st.sessions {
		if !found || stored.lastUsed.Before(oldest) {
			oldestID, oldest, found = id, stored.lastUsed, true
		}
	}
	if found {
		logger.Warn("Command: Лимит сессий, вытеснение самой старой", zap.String("session_id", oldestID))
		delete(st.sessions, oldestID)
	}
}

func (st *SessionStore) Drop(id string) {
	st.mtx.Lock()
	defer st.mtx.Unlock()
	delete(st.sessions, id)
}

func (st *SessionStore) Len() int {
	st.mtx.Lock()
	defer st.mtx.Unlock()
	return len(st.sessions)
}
