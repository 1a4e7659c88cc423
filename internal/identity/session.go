// Package identity отвечает на вопрос «кто смотрит комнату»: Session хранит
// текущего зрителя одного клиента, TokenVerifier превращает bearer-токен в зрителя.
package identity

import (
	"sort"
	"sync"

	"github.com/cwrk-planet/qaroom/internal/domain"
)

// Session — текущий зритель одного клиента (ws-соединения, CLI).
// nil-зритель означает анонима. Смены доставляются подписчикам как события.
type Session struct {
	mu       sync.Mutex
	viewer   *domain.Viewer
	nextID   int
	watchers map[int]func(*domain.Viewer)
}

func NewSession(initial *domain.Viewer) *Session {
	return &Session{
		viewer:   clone(initial),
		watchers: make(map[int]func(*domain.Viewer)),
	}
}

// Current возвращает копию текущего зрителя или nil.
func (s *Session) Current() *domain.Viewer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.viewer)
}

func (s *Session) SignIn(v domain.Viewer) {
	s.set(&v)
}

func (s *Session) SignOut() {
	s.set(nil)
}

// Watch сразу вызывает fn с текущим зрителем, затем на каждую смену.
// fn вызывается под локом сессии и не должна обращаться к ней обратно.
func (s *Session) Watch(fn func(*domain.Viewer)) (stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	fn(clone(s.viewer))

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) set(v *domain.Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = clone(v)
	for _, id := range sortedIDs(s.watchers) {
		s.watchers[id](clone(s.viewer))
	}
}

func clone(v *domain.Viewer) *domain.Viewer {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func sortedIDs(m map[int]func(*domain.Viewer)) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
