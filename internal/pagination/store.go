// Package pagination keeps the last sent report per chat so inline
// navigation can page through it without fetching again.
package pagination

import (
	"errors"
	"sync"
	"time"

	"github.com/stellarlinkco/pixbot/internal/activity"
)

// ErrNoReport is returned when a chat has no stored report to navigate.
var ErrNoReport = errors.New("no report to navigate")

const DefaultPageSize = 6

// State is a chat's stored report.
type State struct {
	ChatID          int64
	Page            int
	TotalPages      int
	Events          []activity.Event
	IntervalMinutes int
	UpdatedAt       time.Time
}

// Page is one slice of a stored report.
type Page struct {
	Events          []activity.Event
	Number          int
	Total           int
	IntervalMinutes int
}

// Store holds one frozen report per chat. A zero ttl keeps entries until
// they are overwritten or cleared.
type Store struct {
	pageSize int
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	states map[int64]*State
}

func NewStore(pageSize int, ttl time.Duration) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		pageSize: pageSize,
		ttl:      ttl,
		now:      time.Now,
		states:   make(map[int64]*State),
	}
}

func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) PageSize() int { return s.pageSize }

// Record freezes events as the chat's current report and resets it to the
// first page.
func (s *Store) Record(chatID int64, events []activity.Event, intervalMinutes int) State {
	frozen := make([]activity.Event, len(events))
	copy(frozen, events)
	now := s.now()

	st := &State{
		ChatID:          chatID,
		Page:            1,
		TotalPages:      s.totalPages(len(frozen)),
		Events:          frozen,
		IntervalMinutes: intervalMinutes,
		UpdatedAt:       now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl > 0 {
		for id, old := range s.states {
			if s.expired(old, now) {
				delete(s.states, id)
			}
		}
	}
	s.states[chatID] = st
	return *st
}

// Navigate moves the chat to page, clamped to the report's bounds, and
// returns that page of the frozen report.
func (s *Store) Navigate(chatID int64, page int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lookup(chatID)
	if !ok {
		return Page{}, ErrNoReport
	}
	page = min(max(page, 1), st.TotalPages)
	st.Page = page

	start := min((page-1)*s.pageSize, len(st.Events))
	end := min(start+s.pageSize, len(st.Events))
	return Page{
		Events:          st.Events[start:end:end],
		Number:          page,
		Total:           st.TotalPages,
		IntervalMinutes: st.IntervalMinutes,
	}, nil
}

// Get returns a copy of the chat's stored state.
func (s *Store) Get(chatID int64) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lookup(chatID)
	if !ok {
		return State{}, false
	}
	return *st, true
}

func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
}

// Len counts stored chats, including expired ones not yet pruned.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func (s *Store) lookup(chatID int64) (*State, bool) {
	st, ok := s.states[chatID]
	if !ok || s.expired(st, s.now()) {
		return nil, false
	}
	return st, true
}

func (s *Store) expired(st *State, now time.Time) bool {
	return s.ttl > 0 && now.Sub(st.UpdatedAt) > s.ttl
}

func (s *Store) totalPages(n int) int {
	return max(1, (n+s.pageSize-1)/s.pageSize)
}
