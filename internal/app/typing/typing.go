/*
Package typing relays typing indicators. It keeps no state: every call is a single publish.
*/
package typing

import (
	"context"

	"livechat/internal/app/eventbus"
	"livechat/internal/app/user"
)

// Event is the payload published on the userStartedTyping and userStoppedTyping topics.
type Event struct {
	ChatroomID   int64     `json:"chatroomId"`
	TypingUserID int64     `json:"typingUserId"`
	User         user.User `json:"user"`
}

// Coordinator publishes typing events. Repeated calls are all delivered; debouncing is up to clients.
type Coordinator struct {
	bus eventbus.Bus
}

// NewCoordinator returns a Coordinator publishing on bus.
func NewCoordinator(bus eventbus.Bus) *Coordinator {
	return &Coordinator{bus: bus}
}

// NotifyStarted announces that u started typing in the chatroom.
func (c *Coordinator) NotifyStarted(ctx context.Context, chatroomID int64, u user.User) {
	c.notify(ctx, eventbus.ClassUserStartedTyping, chatroomID, u)
}

// NotifyStopped announces that u stopped typing in the chatroom.
func (c *Coordinator) NotifyStopped(ctx context.Context, chatroomID int64, u user.User) {
	c.notify(ctx, eventbus.ClassUserStoppedTyping, chatroomID, u)
}

func (c *Coordinator) notify(ctx context.Context, class eventbus.EventClass, chatroomID int64, u user.User) {
	eventbus.Notify(context.WithoutCancel(ctx), c.bus, eventbus.Topic(class, chatroomID), Event{
		ChatroomID:   chatroomID,
		TypingUserID: u.ID,
		User:         u,
	})
}

// ExcludeSelf drops typing events raised by viewerID, so nobody sees their own indicator.
func ExcludeSelf(viewerID int64) eventbus.Filter {
	return eventbus.Typed(func(e Event) bool {
		return e.TypingUserID != viewerID
	})
}
