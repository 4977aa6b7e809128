package chatroom

import (
	"context"
	"errors"

	"livechat/internal/app/user"
)

var (
	// ErrNotFound is returned by a Store when the chatroom does not exist.
	ErrNotFound = errors.New("chatroom not found")

	// ErrDuplicateName is returned by a Store when the chatroom name is taken.
	ErrDuplicateName = errors.New("chatroom name already exists")

	// ErrUnknownUser is returned by a Store when a referenced user does not exist.
	ErrUnknownUser = errors.New("referenced user does not exist")
)

// Expand selects relations to load alongside a chatroom.
type Expand uint8

const (
	// ExpandUsers loads the member list.
	ExpandUsers Expand = 1 << iota

	// ExpandMessages loads the message history with authors.
	ExpandMessages

	// ExpandNone loads the chatroom row only.
	ExpandNone Expand = 0
)

// Has reports whether e includes flag.
func (e Expand) Has(flag Expand) bool {
	return e&flag != 0
}

// NewMessage is the input for Store.CreateMessage.
type NewMessage struct {
	ChatroomID int64
	AuthorID   int64
	Content    string
	ImageURL   string
}

// Store is the persistence collaborator for chatrooms, memberships and messages.
type Store interface {
	// FindChatroom returns the chatroom with id and the requested relations, or ErrNotFound.
	FindChatroom(ctx context.Context, id int64, expand Expand) (*Chatroom, error)

	// FindChatroomByName returns the chatroom with exactly this name, or ErrNotFound.
	FindChatroomByName(ctx context.Context, name string) (*Chatroom, error)

	// ListChatroomsForUser returns every chatroom userID belongs to, newest first.
	ListChatroomsForUser(ctx context.Context, userID int64, expand Expand) ([]Chatroom, error)

	// CreateChatroom inserts a chatroom with creatorID as its first member.
	// Returns ErrDuplicateName or ErrUnknownUser.
	CreateChatroom(ctx context.Context, name string, creatorID int64) (*Chatroom, error)

	// AddMembers adds userIDs to the chatroom atomically; existing members are skipped.
	// Returns ErrNotFound or ErrUnknownUser, in which case nothing is written.
	AddMembers(ctx context.Context, chatroomID int64, userIDs []int64) error

	// DeleteChatroom removes the chatroom, its memberships and its messages. Returns ErrNotFound.
	DeleteChatroom(ctx context.Context, id int64) error

	// CreateMessage persists a message and returns it with its author and chatroom resolved.
	// Returns ErrNotFound or ErrUnknownUser.
	CreateMessage(ctx context.Context, msg NewMessage) (*Message, error)

	// ListMessages returns the chatroom's messages oldest first, with authors. Returns ErrNotFound.
	ListMessages(ctx context.Context, chatroomID int64) ([]Message, error)

	// ListMembers returns the chatroom's members ordered by id. Returns ErrNotFound.
	ListMembers(ctx context.Context, chatroomID int64) ([]user.User, error)
}
