/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package session

import (
	"sync"
	"time"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

type entry struct {
	conv domain.Conversation
	seen time.Time
}

// chatLock serializes updates of one chat. gen changes on Reset so an
// update that started before the reset does not write back.
type chatLock struct {
	mu   sync.Mutex
	refs int
	gen  uint64
}

// Store keeps the recent conversation of each chat in memory. Idle chats
// expire after ttl; each conversation is capped at maxTurns.
type Store struct {
	mu       sync.Mutex
	chats    map[int64]entry
	locks    map[int64]*chatLock
	ttl      time.Duration
	maxTurns int
	now      func() time.Time
}

func NewStore(ttl time.Duration, maxTurns int) *Store {
	return &Store{chats: map[int64]entry{}, locks: map[int64]*chatLock{}, ttl: ttl, maxTurns: maxTurns, now: time.Now}
}

// Get returns a copy of the chat's conversation, or nil when it expired.
func (s *Store) Get(chatID int64) domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	if s.expired(e) {
		delete(s.chats, chatID)
		return nil
	}
	return e.conv.Append()
}

func (s *Store) Put(chatID int64, conv domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(chatID, conv)
}

func (s *Store) put(chatID int64, conv domain.Conversation) {
	if s.maxTurns > 0 {
		conv = conv.Last(s.maxTurns)
	}
	s.chats[chatID] = entry{conv: conv.Append(), seen: s.now()}
}

// Update runs fn on the chat's conversation and stores the result. Updates
// of the same chat run one at a time; other chats are not blocked. The
// result is dropped when the chat was reset while fn ran.
func (s *Store) Update(chatID int64, fn func(domain.Conversation) domain.Conversation) {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &chatLock{}
		s.locks[chatID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, chatID)
		}
		s.mu.Unlock()
	}()

	s.mu.Lock()
	gen := l.gen
	s.mu.Unlock()

	next := fn(s.Get(chatID))

	s.mu.Lock()
	defer s.mu.Unlock()
	if l.gen != gen {
		return
	}
	s.put(chatID, next)
}

func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
	if l, ok := s.locks[chatID]; ok {
		l.gen++
	}
}

// Sweep drops expired conversations and reports how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.chats {
		if s.expired(e) {
			delete(s.chats, id)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

func (s *Store) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.seen) > s.ttl
}
