/*
Package chatroom owns the chatroom and message lifecycle.

It validates requests, drives the persistence collaborator, and announces every newly
persisted message on the chatroom's newMessage topic of the event bus.
*/
package chatroom

import (
	"time"

	"livechat/internal/app/user"
)

// Chatroom is a named group with a member set and a message history.
type Chatroom struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Users is populated only when loaded with ExpandUsers.
	Users []user.User `json:"users,omitempty"`

	// Messages is populated only when loaded with ExpandMessages, oldest first.
	Messages []Message `json:"messages,omitempty"`
}

// Message is a single chat message. At least one of Content and ImageURL is set.
type Message struct {
	ID         int64     `json:"id"`
	ChatroomID int64     `json:"chatroomId"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// User is the author.
	User user.User `json:"user"`

	// Chatroom is a shallow copy of the owning chatroom (no users or messages).
	Chatroom *Chatroom `json:"chatroom,omitempty"`
}

// NewMessageEvent is the payload published on the newMessage topic.
type NewMessageEvent struct {
	ChatroomID int64   `json:"chatroomId"`
	Message    Message `json:"newMessage"`
}
