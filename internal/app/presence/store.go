/*
Package presence tracks which users are currently live in each chatroom.

The Store holds the live-user sets; the Service is the only component that mutates them
and announces every change on the chatroom's liveUserInChatroom topic.
*/
package presence

import (
	"context"
	"slices"
	"sync"

	"livechat/internal/app/user"
)

// Store holds the live-user set of every chatroom.
type Store interface {
	// Add puts u into the chatroom's set. Adding a present user replaces its entry.
	Add(ctx context.Context, chatroomID int64, u user.User) error

	// Remove deletes userID from the chatroom's set. Removing an absent user is not an error.
	Remove(ctx context.Context, chatroomID, userID int64) error

	// List returns the chatroom's live users ordered by id. An unknown chatroom yields an empty list.
	List(ctx context.Context, chatroomID int64) ([]user.User, error)
}

// MemoryStore is the process-local Store. Its contents are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[int64]map[int64]user.User
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[int64]map[int64]user.User),
	}
}

func (s *MemoryStore) Add(_ context.Context, chatroomID int64, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.rooms[chatroomID]
	if !ok {
		live = make(map[int64]user.User)
		s.rooms[chatroomID] = live
	}
	live[u.ID] = u
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, chatroomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.rooms[chatroomID]
	if !ok {
		return nil
	}
	delete(live, userID)
	if len(live) == 0 {
		delete(s.rooms, chatroomID)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, chatroomID int64) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]user.User, 0, len(s.rooms[chatroomID]))
	for _, u := range s.rooms[chatroomID] {
		users = append(users, u)
	}
	sortByID(users)
	return users, nil
}

func sortByID(users []user.User) {
	slices.SortFunc(users, func(a, b user.User) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
