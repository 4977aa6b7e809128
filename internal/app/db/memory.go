package db

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"livechat/internal/app/chatroom"
	"livechat/internal/app/user"
)

// MemoryStore keeps users, chatrooms and messages in process memory.
// It is selected with DATABASE_URL=memory and backs service tests.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[int64]user.User
	chatrooms map[int64]chatroom.Chatroom
	members   map[int64]map[int64]struct{}
	messages  map[int64][]memoryMessage

	nextUserID     int64
	nextChatroomID int64
	nextMessageID  int64

	now func() time.Time
}

type memoryMessage struct {
	chatroom.Message
	authorID int64
}

var (
	_ chatroom.Store = (*MemoryStore)(nil)
	_ user.Store     = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]user.User),
		chatrooms: make(map[int64]chatroom.Chatroom),
		members:   make(map[int64]map[int64]struct{}),
		messages:  make(map[int64][]memoryMessage),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser inserts a user and returns it with its assigned id.
func (s *MemoryStore) CreateUser(_ context.Context, fullname, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	now := s.now()
	u := user.User{ID: s.nextUserID, Fullname: fullname, Email: email, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	return &u, nil
}

// --- users ---

func (s *MemoryStore) FindUser(_ context.Context, id int64) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, id int64, update user.ProfileUpdate) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if update.Fullname != nil {
		u.Fullname = *update.Fullname
	}
	if update.AvatarURL != nil {
		u.Avatar = *update.AvatarURL
	}
	u.UpdatedAt = s.now()
	s.users[id] = u
	return &u, nil
}

func (s *MemoryStore) SearchUsers(_ context.Context, fullname string, excludeID int64) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(fullname)
	found := []user.User{}
	for _, u := range s.users {
		if u.ID != excludeID && strings.Contains(strings.ToLower(u.Fullname), needle) {
			found = append(found, u)
		}
	}

	slices.SortFunc(found, func(a, b user.User) int {
		return cmp.Or(cmp.Compare(a.Fullname, b.Fullname), cmp.Compare(a.ID, b.ID))
	})
	if len(found) > SearchLimit {
		found = found[:SearchLimit]
	}
	return found, nil
}

// --- chatrooms ---

func (s *MemoryStore) FindChatroom(_ context.Context, id int64, expand chatroom.Expand) (*chatroom.Chatroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.chatrooms[id]
	if !ok {
		return nil, chatroom.ErrNotFound
	}
	s.expand(&room, expand)
	return &room, nil
}

func (s *MemoryStore) FindChatroomByName(_ context.Context, name string) (*chatroom.Chatroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, room := range s.chatrooms {
		if room.Name == name {
			return &room, nil
		}
	}
	return nil, chatroom.ErrNotFound
}

func (s *MemoryStore) ListChatroomsForUser(_ context.Context, userID int64, expand chatroom.Expand) ([]chatroom.Chatroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := []chatroom.Chatroom{}
	for id, members := range s.members {
		if _, ok := members[userID]; ok {
			room := s.chatrooms[id]
			s.expand(&room, expand)
			rooms = append(rooms, room)
		}
	}

	slices.SortFunc(rooms, func(a, b chatroom.Chatroom) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return rooms, nil
}

func (s *MemoryStore) CreateChatroom(_ context.Context, name string, creatorID int64) (*chatroom.Chatroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, room := range s.chatrooms {
		if room.Name == name {
			return nil, chatroom.ErrDuplicateName
		}
	}
	if _, ok := s.users[creatorID]; !ok {
		return nil, chatroom.ErrUnknownUser
	}

	s.nextChatroomID++
	now := s.now()
	room := chatroom.Chatroom{ID: s.nextChatroomID, Name: name, CreatedAt: now, UpdatedAt: now}
	s.chatrooms[room.ID] = room
	s.members[room.ID] = map[int64]struct{}{creatorID: {}}
	return &room, nil
}

func (s *MemoryStore) AddMembers(_ context.Context, chatroomID int64, userIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.chatrooms[chatroomID]
	if !ok {
		return chatroom.ErrNotFound
	}
	for _, id := range userIDs {
		if _, ok := s.users[id]; !ok {
			return chatroom.ErrUnknownUser
		}
	}

	for _, id := range userIDs {
		s.members[chatroomID][id] = struct{}{}
	}
	room.UpdatedAt = s.now()
	s.chatrooms[chatroomID] = room
	return nil
}

func (s *MemoryStore) DeleteChatroom(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chatrooms[id]; !ok {
		return chatroom.ErrNotFound
	}
	delete(s.chatrooms, id)
	delete(s.members, id)
	delete(s.messages, id)
	return nil
}

// --- messages ---

func (s *MemoryStore) CreateMessage(_ context.Context, msg chatroom.NewMessage) (*chatroom.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.chatrooms[msg.ChatroomID]
	if !ok {
		return nil, chatroom.ErrNotFound
	}
	author, ok := s.users[msg.AuthorID]
	if !ok {
		return nil, chatroom.ErrUnknownUser
	}

	s.nextMessageID++
	now := s.now()
	stored := memoryMessage{
		Message: chatroom.Message{
			ID:         s.nextMessageID,
			ChatroomID: msg.ChatroomID,
			Content:    msg.Content,
			ImageURL:   msg.ImageURL,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		authorID: author.ID,
	}
	s.messages[msg.ChatroomID] = append(s.messages[msg.ChatroomID], stored)

	out := stored.Message
	out.User = author
	out.Chatroom = &room
	return &out, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, chatroomID int64) ([]chatroom.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.chatrooms[chatroomID]; !ok {
		return nil, chatroom.ErrNotFound
	}
	return s.listMessages(chatroomID), nil
}

func (s *MemoryStore) ListMembers(_ context.Context, chatroomID int64) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.chatrooms[chatroomID]; !ok {
		return nil, chatroom.ErrNotFound
	}
	return s.listMembers(chatroomID), nil
}

// listMessages resolves authors at read time so profile changes show up in history.
func (s *MemoryStore) listMessages(chatroomID int64) []chatroom.Message {
	stored := s.messages[chatroomID]
	messages := make([]chatroom.Message, 0, len(stored))
	for _, m := range stored {
		out := m.Message
		out.User = s.users[m.authorID]
		messages = append(messages, out)
	}
	return messages
}

func (s *MemoryStore) listMembers(chatroomID int64) []user.User {
	members := make([]user.User, 0, len(s.members[chatroomID]))
	for id := range s.members[chatroomID] {
		members = append(members, s.users[id])
	}
	slices.SortFunc(members, func(a, b user.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return members
}

func (s *MemoryStore) expand(room *chatroom.Chatroom, expand chatroom.Expand) {
	if expand.Has(chatroom.ExpandUsers) {
		room.Users = s.listMembers(room.ID)
	}
	if expand.Has(chatroom.ExpandMessages) {
		room.Messages = s.listMessages(room.ID)
	}
}
