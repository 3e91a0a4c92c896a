package memory

import (
	"container/list"
	"sort"
	"strings"
	"sync"
	"time"
)

type lruStore struct {
	mu         sync.Mutex
	maxEntries int
	now        func() time.Time
	// order holds *Entry, front = most recently used.
	order    *list.List
	elements map[string]*list.Element
}

// LRUOption configures NewLRU.
type LRUOption func(*lruStore)

// WithClock replaces time.Now for retention checks.
func WithClock(now func() time.Time) LRUOption {
	return func(s *lruStore) { s.now = now }
}

// NewLRU returns a Store holding at most maxEntries payloads. A non-positive
// maxEntries disables the bound.
func NewLRU(maxEntries int, opts ...LRUOption) Store {
	s := &lruStore{
		maxEntries: maxEntries,
		now:        time.Now,
		order:      list.New(),
		elements:   make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *lruStore) Set(key string, value []byte, opts ...Option) {
	o := &setOptions{}
	for _, opt := range opts {
		opt(o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var expiresAt *time.Time
	if o.ttl > 0 {
		t := now.Add(o.ttl)
		expiresAt = &t
	}

	if elem, ok := s.elements[key]; ok {
		e := elem.Value.(*Entry)
		e.Value = value
		e.ExpiresAt = expiresAt
		e.UpdatedAt = now
		s.order.MoveToFront(elem)
		return
	}

	if s.maxEntries > 0 && s.order.Len() >= s.maxEntries {
		if back := s.order.Back(); back != nil {
			evicted := s.order.Remove(back).(*Entry)
			delete(s.elements, evicted.Key)
		}
	}

	s.elements[key] = s.order.PushFront(&Entry{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
		UpdatedAt: now,
		CreatedAt: now,
	})
}

func (s *lruStore) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.elements[key]
	if !ok {
		return Entry{}, false
	}
	e := elem.Value.(*Entry)
	if e.ExpiresAt != nil && s.now().After(*e.ExpiresAt) {
		s.removeLocked(elem)
		return Entry{}, false
	}
	s.order.MoveToFront(elem)
	return *e, true
}

func (s *lruStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.elements[key]
	if !ok {
		return false
	}
	s.removeLocked(elem)
	return true
}

func (s *lruStore) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, elem := range s.elements {
		if strings.HasPrefix(key, prefix) {
			s.removeLocked(elem)
			n++
		}
	}
	return n
}

func (s *lruStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.elements))
	for key := range s.elements {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *lruStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	s.elements = make(map[string]*list.Element)
}

func (s *lruStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *lruStore) removeLocked(elem *list.Element) {
	e := s.order.Remove(elem).(*Entry)
	delete(s.elements, e.Key)
}
